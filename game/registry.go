package game

import (
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// RegistryConfig tunes the registry and the sessions it creates.
type RegistryConfig struct {
	Session SessionConfig
	// IdleGrace is how long a session may sit with no connected players
	// before the reaper tears it down.
	IdleGrace time.Duration
	// FinishedRetention is how long a finished session is kept around for
	// late result delivery.
	FinishedRetention time.Duration
	// SweepInterval is the reaper cadence.
	SweepInterval time.Duration
}

func (c RegistryConfig) withDefaults() RegistryConfig {
	if c.IdleGrace <= 0 {
		c.IdleGrace = 2 * time.Minute
	}
	if c.FinishedRetention <= 0 {
		c.FinishedRetention = 30 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 10 * time.Second
	}
	return c
}

// Registry is the exclusive owner of the session collection. It is an
// injected instance rather than package state, so tests can run independent
// registries side by side. Lookups and creations for an id are serialized:
// two simultaneous first-joiners always land in the same session.
type Registry struct {
	cfg     RegistryConfig
	sink    EventSink
	log     *zap.SugaredLogger
	newRand func() *rand.Rand

	mu       sync.Mutex
	sessions map[string]*Session

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRegistry builds a registry and starts its reaper goroutine. Call Close
// to stop the reaper and abort every live session.
func NewRegistry(cfg RegistryConfig, sink EventSink, log *zap.SugaredLogger) *Registry {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	r := &Registry{
		cfg:      cfg.withDefaults(),
		sink:     sink,
		log:      log,
		newRand:  func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) },
		sessions: make(map[string]*Session),
		stop:     make(chan struct{}),
	}
	go r.reap()
	return r
}

// SetRandFactory overrides the per-session random source, for deterministic
// tests. Must be called before any session is created.
func (r *Registry) SetRandFactory(f func() *rand.Rand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.newRand = f
}

// GetOrCreate returns the session for id, creating it on first use.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		return s
	}
	s := NewSession(id, r.cfg.Session, r.sink, r.newRand(), r.log)
	r.sessions[id] = s
	r.log.Infow("session created", "session", id)
	return s
}

// Get returns an existing session or ErrUnknownSession.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, nil
}

// List snapshots every live session.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// Remove closes and deletes a session. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
		r.log.Infow("session removed", "session", id)
	}
}

// Close stops the reaper and aborts all sessions.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// reap tears down idle and long-finished sessions. Advisory cleanup only;
// correctness never depends on it.
func (r *Registry) reap() {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case now := <-ticker.C:
			r.sweep(now)
		}
	}
}

func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	var stale []string
	for id, s := range r.sessions {
		if d := s.finishedFor(now); d > 0 && d > r.cfg.FinishedRetention {
			stale = append(stale, id)
			continue
		}
		if d := s.idleFor(now); d > 0 && d > r.cfg.IdleGrace {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		r.log.Infow("reaping session", "session", id)
		r.Remove(id)
	}
}
