package dedup

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LedgerCapacity is the number of recently-processed file ids retained.
const LedgerCapacity = 50

// Ledger is the file-level dedup set: a bounded FIFO of the file ids already
// dispatched downstream. Membership is O(1) via an insert-only LRU index;
// since entries are added once and never touched again, LRU eviction
// degenerates to oldest-inserted-first, which is exactly the ring semantics.
//
// The ledger is shared across all resources, so Record is globally
// serialized to avoid lost updates between concurrent reconciliations.
type Ledger struct {
	store LedgerStore

	mu    sync.Mutex
	index *lru.Cache[string, struct{}]
}

// NewLedger loads the persisted ledger into memory. Persisted ids beyond
// capacity are dropped oldest-first.
func NewLedger(ctx context.Context, store LedgerStore) (*Ledger, error) {
	index, err := lru.New[string, struct{}](LedgerCapacity)
	if err != nil {
		return nil, fmt.Errorf("create ledger index: %w", err)
	}

	ids, err := store.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	for _, id := range ids {
		index.Add(id, struct{}{})
	}

	return &Ledger{
		store: store,
		index: index,
	}, nil
}

// IsNew reports whether fileID has not been dispatched recently.
func (l *Ledger) IsNew(fileID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.index.Contains(fileID)
}

// Record adds fileID to the ledger, evicting the oldest entry at capacity,
// and persists the full ledger atomically.
func (l *Ledger) Record(ctx context.Context, fileID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.index.Add(fileID, struct{}{})
	if err := l.store.Put(ctx, l.index.Keys()); err != nil {
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// Len returns the current number of ledger entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.index.Len()
}

// IDs returns the ledger contents oldest first.
func (l *Ledger) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.index.Keys()
}
