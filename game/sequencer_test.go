package game

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencerEmitsEveryNumberExactlyOnce(t *testing.T) {
	var mu sync.Mutex
	var emitted []int
	done := make(chan struct{})

	seq := NewSequencer(time.Millisecond, rand.New(rand.NewSource(1)),
		func(n int) bool {
			mu.Lock()
			emitted = append(emitted, n)
			mu.Unlock()
			return true
		},
		func() { close(done) },
	)
	seq.Start()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sequencer did not exhaust the pool")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, emitted, TotalNumbers)
	seen := make(map[int]bool)
	for _, n := range emitted {
		assert.False(t, seen[n], "number %d drawn twice", n)
		seen[n] = true
		assert.NotEmpty(t, LetterFor(n), "number %d outside the pool", n)
	}
}

func TestSequencerStopHaltsEmission(t *testing.T) {
	var mu sync.Mutex
	count := 0

	seq := NewSequencer(time.Millisecond, rand.New(rand.NewSource(2)),
		func(int) bool {
			mu.Lock()
			count++
			mu.Unlock()
			return true
		}, nil)
	seq.Start()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 5
	}, time.Second, time.Millisecond)

	seq.Stop()
	mu.Lock()
	after := count
	mu.Unlock()

	// One in-flight tick may land, then the count must stay put.
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	final := count
	mu.Unlock()
	assert.LessOrEqual(t, final, after+1)
	assert.Less(t, final, TotalNumbers)
}

func TestSequencerStopIsIdempotent(t *testing.T) {
	seq := NewSequencer(time.Hour, rand.New(rand.NewSource(3)), func(int) bool { return true }, nil)
	seq.Start()
	seq.Stop()
	assert.NotPanics(t, func() { seq.Stop() })
	assert.NotPanics(t, func() { seq.Stop() })
}
