package game

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRegistryConfig() RegistryConfig {
	return RegistryConfig{
		Session:           SessionConfig{Capacity: 4, DrawInterval: time.Hour},
		IdleGrace:         20 * time.Millisecond,
		FinishedRetention: 20 * time.Millisecond,
		SweepInterval:     5 * time.Millisecond,
	}
}

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry(RegistryConfig{}, NopSink{}, nil)
	defer r.Close()

	s1 := r.GetOrCreate("room-1")
	s2 := r.GetOrCreate("room-1")
	assert.Same(t, s1, s2, "same id must resolve to the same session")

	other := r.GetOrCreate("room-2")
	assert.NotSame(t, s1, other)

	got, err := r.Get("room-1")
	require.NoError(t, err)
	assert.Same(t, s1, got)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownSession)
}

func TestRegistryConcurrentFirstJoiners(t *testing.T) {
	r := NewRegistry(RegistryConfig{}, NopSink{}, nil)
	defer r.Close()

	const n = 16
	out := make(chan *Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out <- r.GetOrCreate("shared")
		}()
	}
	wg.Wait()
	close(out)

	first := <-out
	for s := range out {
		assert.Same(t, first, s, "duplicate session created for one id")
	}
}

func TestRegistryIndependentInstances(t *testing.T) {
	a := NewRegistry(RegistryConfig{}, NopSink{}, nil)
	defer a.Close()
	b := NewRegistry(RegistryConfig{}, NopSink{}, nil)
	defer b.Close()

	assert.NotSame(t, a.GetOrCreate("x"), b.GetOrCreate("x"))
}

func TestRegistryRemoveClosesSession(t *testing.T) {
	r := NewRegistry(RegistryConfig{}, NopSink{}, nil)
	defer r.Close()

	s := r.GetOrCreate("room")
	require.NoError(t, s.Join("alice"))

	r.Remove("room")
	assert.Equal(t, PhaseFinished, s.Phase())
	_, err := r.Get("room")
	assert.ErrorIs(t, err, ErrUnknownSession)

	r.Remove("room") // no-op
}

func TestRegistryReapsIdleSessions(t *testing.T) {
	r := NewRegistry(fastRegistryConfig(), NopSink{}, nil)
	defer r.Close()

	r.GetOrCreate("never-joined")

	require.Eventually(t, func() bool {
		_, err := r.Get("never-joined")
		return err != nil
	}, time.Second, 5*time.Millisecond, "idle session was never reaped")
}

func TestRegistryKeepsConnectedSessions(t *testing.T) {
	r := NewRegistry(fastRegistryConfig(), NopSink{}, nil)
	defer r.Close()

	s := r.GetOrCreate("busy")
	require.NoError(t, s.Join("alice"))

	time.Sleep(60 * time.Millisecond)
	_, err := r.Get("busy")
	assert.NoError(t, err, "session with a connected player must survive sweeps")
}

func TestRegistryReapsFinishedSessions(t *testing.T) {
	r := NewRegistry(fastRegistryConfig(), NopSink{}, nil)
	defer r.Close()

	s := r.GetOrCreate("done")
	require.NoError(t, s.Join("alice"))
	s.Close()

	require.Eventually(t, func() bool {
		_, err := r.Get("done")
		return err != nil
	}, time.Second, 5*time.Millisecond, "finished session was never reclaimed")
}

func TestRegistryListSnapshots(t *testing.T) {
	r := NewRegistry(RegistryConfig{}, NopSink{}, nil)
	defer r.Close()

	for i := 0; i < 3; i++ {
		r.GetOrCreate(fmt.Sprintf("room-%d", i))
	}
	assert.Len(t, r.List(), 3)
}

func TestRegistryRandFactory(t *testing.T) {
	r := NewRegistry(RegistryConfig{}, NopSink{}, nil)
	defer r.Close()
	r.SetRandFactory(func() *rand.Rand { return rand.New(rand.NewSource(1)) })

	s := r.GetOrCreate("seeded")
	require.NoError(t, s.Join("alice"))
	require.NoError(t, s.SelectCard("alice", 0))

	// Same seed, same random card number in a second registry.
	r2 := NewRegistry(RegistryConfig{}, NopSink{}, nil)
	defer r2.Close()
	r2.SetRandFactory(func() *rand.Rand { return rand.New(rand.NewSource(1)) })
	s2 := r2.GetOrCreate("seeded")
	require.NoError(t, s2.Join("alice"))
	require.NoError(t, s2.SelectCard("alice", 0))

	assert.Equal(t, s.Snapshot().Players[0].CardNumber, s2.Snapshot().Players[0].CardNumber)
}
