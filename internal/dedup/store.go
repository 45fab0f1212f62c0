// Package dedup provides the two delivery-deduplication layers of the sync
// core: a per-channel sequence watermark for transport-level redelivery and
// a bounded ledger of recently-processed file ids for file-level replay.
package dedup

import "context"

// WatermarkStore persists the highest accepted message number per channel.
// Get returns ok=false when the channel has never been seen.
type WatermarkStore interface {
	Get(ctx context.Context, channelID string) (n uint64, ok bool, err error)
	Put(ctx context.Context, channelID string, n uint64) error
}

// LedgerStore persists the ordered list of recently-processed file ids,
// oldest first.
type LedgerStore interface {
	Get(ctx context.Context) ([]string, error)
	Put(ctx context.Context, ids []string) error
}
