package dedup

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/Spountil/watermark-gdrive/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerStores(t *testing.T) map[string]LedgerStore {
	t.Helper()

	database, err := db.NewSqliteDB()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	sqliteStore, err := NewSqliteLedgerStore(database)
	require.NoError(t, err)

	fileStore, err := NewFileLedgerStore(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)

	return map[string]LedgerStore{
		"sqlite": sqliteStore,
		"file":   fileStore,
	}
}

func TestLedger_IsNewThenRecord(t *testing.T) {
	for name, store := range newLedgerStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ledger, err := NewLedger(ctx, store)
			require.NoError(t, err)

			assert.True(t, ledger.IsNew("f1"))
			require.NoError(t, ledger.Record(ctx, "f1"))
			assert.False(t, ledger.IsNew("f1"))
			assert.Equal(t, []string{"f1"}, ledger.IDs())
		})
	}
}

func TestLedger_EvictsOldestAtCapacity(t *testing.T) {
	for name, store := range newLedgerStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ledger, err := NewLedger(ctx, store)
			require.NoError(t, err)

			for i := 0; i < LedgerCapacity; i++ {
				require.NoError(t, ledger.Record(ctx, fmt.Sprintf("f%d", i)))
			}
			require.Equal(t, LedgerCapacity, ledger.Len())

			// one more evicts the oldest, size stays at capacity
			require.NoError(t, ledger.Record(ctx, "overflow"))
			assert.Equal(t, LedgerCapacity, ledger.Len())
			assert.True(t, ledger.IsNew("f0"), "oldest entry evicted")
			assert.False(t, ledger.IsNew("overflow"))

			ids := ledger.IDs()
			assert.Equal(t, "f1", ids[0])
			assert.Equal(t, "overflow", ids[len(ids)-1])
		})
	}
}

func TestLedger_PersistsAcrossReload(t *testing.T) {
	for name, store := range newLedgerStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ledger, err := NewLedger(ctx, store)
			require.NoError(t, err)

			require.NoError(t, ledger.Record(ctx, "f1"))
			require.NoError(t, ledger.Record(ctx, "f2"))

			reloaded, err := NewLedger(ctx, store)
			require.NoError(t, err)
			assert.False(t, reloaded.IsNew("f1"))
			assert.False(t, reloaded.IsNew("f2"))
			assert.Equal(t, []string{"f1", "f2"}, reloaded.IDs())
		})
	}
}

func TestLedger_LoadTruncatesOversizedDocument(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileLedgerStore(filepath.Join(t.TempDir(), "ledger.json"))
	require.NoError(t, err)

	var ids []string
	for i := 0; i < LedgerCapacity+10; i++ {
		ids = append(ids, fmt.Sprintf("f%d", i))
	}
	require.NoError(t, store.Put(ctx, ids))

	ledger, err := NewLedger(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, LedgerCapacity, ledger.Len())
	// the oldest ids beyond capacity were dropped
	assert.True(t, ledger.IsNew("f0"))
	assert.False(t, ledger.IsNew(fmt.Sprintf("f%d", LedgerCapacity+9)))
}
