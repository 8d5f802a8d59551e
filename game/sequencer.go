package game

import (
	"math/rand"
	"sync"
	"time"
)

// DefaultDrawInterval is the cadence of the caller: one number every 5s.
const DefaultDrawInterval = 5 * time.Second

// Sequencer emits the lazy, non-repeating draw sequence for one session. The
// full 1-75 pool is shuffled up front, so uniqueness holds by construction;
// one number is handed to the emit callback per tick until the pool is
// exhausted or Stop is called. Stop is idempotent and wins the race against
// the next tick: the owning session re-checks its phase inside emit, so no
// call escapes after a terminal transition.
type Sequencer struct {
	interval  time.Duration
	order     []int
	emit      func(n int) bool
	exhausted func()

	cancel   chan struct{}
	stopOnce sync.Once
}

// NewSequencer shuffles the pool with the given source. emit is invoked once
// per tick with the next number and returns false to halt early; exhausted is
// invoked after the final number was emitted.
func NewSequencer(interval time.Duration, rng *rand.Rand, emit func(n int) bool, exhausted func()) *Sequencer {
	order := rng.Perm(TotalNumbers)
	for i := range order {
		order[i]++
	}
	return &Sequencer{
		interval:  interval,
		order:     order,
		emit:      emit,
		exhausted: exhausted,
		cancel:    make(chan struct{}),
	}
}

// Start launches the draw loop in its own goroutine.
func (s *Sequencer) Start() {
	go s.run()
}

// Stop halts the loop. Safe to call repeatedly and from any goroutine;
// already-emitted history is never discarded.
func (s *Sequencer) Stop() {
	s.stopOnce.Do(func() { close(s.cancel) })
}

func (s *Sequencer) run() {
	for _, n := range s.order {
		select {
		case <-s.cancel:
			return
		case <-time.After(s.interval):
			select {
			case <-s.cancel:
				return
			default:
			}
			if !s.emit(n) {
				return
			}
		}
	}
	if s.exhausted != nil {
		s.exhausted()
	}
}
