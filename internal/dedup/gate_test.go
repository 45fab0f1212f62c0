package dedup

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Spountil/watermark-gdrive/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWatermarkStores(t *testing.T) map[string]WatermarkStore {
	t.Helper()

	database, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	sqliteStore, err := NewSqliteWatermarkStore(database)
	require.NoError(t, err)

	fileStore, err := NewFileWatermarkStore(filepath.Join(t.TempDir(), "watermarks.json"))
	require.NoError(t, err)

	return map[string]WatermarkStore{
		"sqlite": sqliteStore,
		"file":   fileStore,
	}
}

func TestGate_FirstDeliveryAccepted(t *testing.T) {
	for name, store := range newWatermarkStores(t) {
		t.Run(name, func(t *testing.T) {
			gate := NewGate(store)
			ok, err := gate.Accept(context.Background(), "ch-1", "1")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestGate_EqualNumberIsDuplicate(t *testing.T) {
	for name, store := range newWatermarkStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			gate := NewGate(store)

			ok, err := gate.Accept(ctx, "ch-1", "5")
			require.NoError(t, err)
			require.True(t, ok)

			// exact replay of message number 5
			ok, err = gate.Accept(ctx, "ch-1", "5")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestGate_LowerNumberIsDuplicate_NoMutation(t *testing.T) {
	ctx := context.Background()
	stores := newWatermarkStores(t)
	store := stores["sqlite"]
	gate := NewGate(store)

	ok, err := gate.Accept(ctx, "ch-1", "10")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = gate.Accept(ctx, "ch-1", "3")
	require.NoError(t, err)
	assert.False(t, ok)

	// the stale delivery must not roll the watermark back
	n, seen, err := store.Get(ctx, "ch-1")
	require.NoError(t, err)
	require.True(t, seen)
	assert.Equal(t, uint64(10), n)
}

func TestGate_MalformedNumber(t *testing.T) {
	ctx := context.Background()
	stores := newWatermarkStores(t)
	gate := NewGate(stores["file"])

	// fresh channel: malformed number degrades to 0 and is still accepted
	ok, err := gate.Accept(ctx, "ch-1", "not-a-number")
	var seqErr *MalformedSequenceError
	require.ErrorAs(t, err, &seqErr)
	assert.True(t, ok)

	// once a watermark exists, a malformed number is a duplicate
	ok, err = gate.Accept(ctx, "ch-1", "garbage")
	require.ErrorAs(t, err, &seqErr)
	assert.False(t, ok)
}

func TestGate_ChannelsAreIndependent(t *testing.T) {
	ctx := context.Background()
	stores := newWatermarkStores(t)
	gate := NewGate(stores["sqlite"])

	ok, err := gate.Accept(ctx, "ch-1", "7")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = gate.Accept(ctx, "ch-2", "7")
	require.NoError(t, err)
	assert.True(t, ok)
}

// Replays of any already-seen number never pass, regardless of order.
func TestGate_IdempotentReplayProperty(t *testing.T) {
	ctx := context.Background()
	stores := newWatermarkStores(t)
	gate := NewGate(stores["sqlite"])

	rng := rand.New(rand.NewSource(7))
	highest := uint64(0)
	for i := 0; i < 200; i++ {
		n := uint64(rng.Intn(50))
		ok, err := gate.Accept(ctx, "ch-replay", fmt.Sprintf("%d", n))
		require.NoError(t, err)

		if i == 0 {
			assert.True(t, ok, "first delivery is always accepted")
			highest = n
			continue
		}
		if n <= highest {
			assert.False(t, ok, "replayed number %d at watermark %d", n, highest)
		} else {
			assert.True(t, ok, "fresh number %d at watermark %d", n, highest)
			highest = n
		}
	}
}

func TestGate_ConcurrentDeliveriesSameChannel(t *testing.T) {
	ctx := context.Background()
	stores := newWatermarkStores(t)
	gate := NewGate(stores["file"])

	var wg sync.WaitGroup
	accepted := make(chan uint64, 100)
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ok, err := gate.Accept(ctx, "ch-1", fmt.Sprintf("%d", n))
			assert.NoError(t, err)
			if ok {
				accepted <- uint64(n)
			}
		}(i)
	}
	wg.Wait()
	close(accepted)

	// accepted numbers must be unique: no number can pass the gate twice
	seen := map[uint64]bool{}
	for n := range accepted {
		assert.False(t, seen[n])
		seen[n] = true
	}
}
