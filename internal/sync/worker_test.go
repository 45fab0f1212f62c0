package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_SubmitShedsWhenFull(t *testing.T) {
	// no workers started: the backlog fills up and stays full
	pool := NewPool(nil, 1, 2)

	require.NoError(t, pool.Submit("R1"))
	require.NoError(t, pool.Submit("R2"))
	assert.ErrorIs(t, pool.Submit("R3"), ErrQueueFull)
}

func TestPool_WorkersDrainJobs(t *testing.T) {
	store := newMemCursorStore()
	fetcher := &fakeFetcher{startToken: "head-1"}
	engine := newTestEngine(t, store, fetcher, &recordingDispatcher{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(engine, 2, 8)
	pool.Start(ctx)

	for _, id := range []string{"R1", "R2", "R3"} {
		require.NoError(t, pool.Submit(id))
	}

	// each resource gets bootstrapped exactly once
	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.tokens) == 3
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	pool.Wait()
}

func TestPool_DefaultsApplied(t *testing.T) {
	pool := NewPool(nil, 0, 0)
	assert.Equal(t, DefaultWorkers, pool.workers)
	assert.Equal(t, DefaultQueueSize, cap(pool.jobs))
}
