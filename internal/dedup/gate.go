package dedup

import (
	"context"
	"strconv"
	"sync"
)

// Gate is the transport-level dedup check. Webhook delivery is at-least-once,
// so every notification carries a channel-scoped incrementing message number;
// the gate accepts a delivery only when its number is strictly greater than
// the stored watermark. An equal number is an exact replay and is skipped.
//
// The read-modify-write on a channel's watermark is serialized by a
// per-channel mutex so concurrent deliveries cannot both pass.
type Gate struct {
	store WatermarkStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewGate(store WatermarkStore) *Gate {
	return &Gate{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// Accept reports whether the delivery should proceed. It returns false for
// duplicates, with no state mutation. A non-numeric messageNumber yields a
// *MalformedSequenceError alongside the verdict for sequence number zero;
// callers log it and honor the verdict.
func (g *Gate) Accept(ctx context.Context, channelID, messageNumber string) (bool, error) {
	var seqErr error
	n, err := strconv.ParseUint(messageNumber, 10, 64)
	if err != nil {
		n = 0
		seqErr = &MalformedSequenceError{Raw: messageNumber}
	}

	lock := g.channelLock(channelID)
	lock.Lock()
	defer lock.Unlock()

	watermark, seen, err := g.store.Get(ctx, channelID)
	if err != nil {
		return false, err
	}

	// first delivery for a channel is always accepted
	if seen && n <= watermark {
		return false, seqErr
	}

	if err := g.store.Put(ctx, channelID, n); err != nil {
		return false, err
	}
	return true, seqErr
}

func (g *Gate) channelLock(channelID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()

	lock, ok := g.locks[channelID]
	if !ok {
		lock = &sync.Mutex{}
		g.locks[channelID] = lock
	}
	return lock
}
