package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/Spountil/watermark-gdrive/internal/cursor"
	"github.com/Spountil/watermark-gdrive/internal/dedup"
	"github.com/Spountil/watermark-gdrive/internal/gdrive"
)

const (
	// persistRetries bounds how often a failed store write is retried before
	// the run surfaces a PersistError.
	persistRetries = 3

	persistRetryDelay = 200 * time.Millisecond
)

// Fetcher is the boundary to the provider's paginated change feed.
type Fetcher interface {
	StartPageToken(ctx context.Context, resourceID string) (string, error)
	List(ctx context.Context, cursor, resourceID string) ([]*gdrive.Change, string, error)
}

// Dispatcher consumes the classified work-list of a batch. It owns its own
// error handling; the engine treats dispatch as fire-and-forget.
type Dispatcher interface {
	Dispatch(ctx context.Context, resourceID string, records []*ChangeRecord)
}

// Result summarizes one reconciliation run.
type Result struct {
	// Bootstrapped is set when a cursor was created for a never-seen
	// resource. Such a run fetches nothing by design.
	Bootstrapped bool
	// Records is the full classified batch, in feed order.
	Records []*ChangeRecord
	// Dispatched is set when a non-empty work-list was handed downstream.
	Dispatched bool
}

// Engine is the reconciliation core. One Reconcile call handles one
// notification: cursor load or bootstrap, change fetch, classification,
// file-level dedup, durable progress, dispatch.
type Engine struct {
	cursors    cursor.Store
	ledger     *dedup.Ledger
	fetcher    Fetcher
	dispatcher Dispatcher
	rules      Rules
	resLocks   *keyedMutex
}

func NewEngine(cursors cursor.Store, ledger *dedup.Ledger, fetcher Fetcher, dispatcher Dispatcher, rules Rules) *Engine {
	return &Engine{
		cursors:    cursors,
		ledger:     ledger,
		fetcher:    fetcher,
		dispatcher: dispatcher,
		rules:      rules,
		resLocks:   newKeyedMutex(),
	}
}

// Reconcile processes one change notification for resourceID. Runs for the
// same resource are serialized; runs for different resources proceed in
// parallel.
//
// Progress ordering is persist-before-dispatch: the new cursor is stored as
// soon as the fetch succeeds, before any change is handled. A crash after
// that point skips re-fetching the batch on retry; the ledger and the
// idempotent downstream pipeline cover the gap.
func (e *Engine) Reconcile(ctx context.Context, resourceID string) (*Result, error) {
	unlock := e.resLocks.Lock(resourceID)
	defer unlock()

	cur, err := e.cursors.Get(ctx, resourceID)
	if err != nil {
		return nil, &FetchError{ResourceID: resourceID, Err: err}
	}

	if cur == nil {
		return e.bootstrap(ctx, resourceID)
	}

	changes, newCursor, err := e.fetcher.List(ctx, cur.Token, resourceID)
	if err != nil {
		return nil, &FetchError{ResourceID: resourceID, Err: err}
	}

	// nothing moved: idempotent no-op, no persist
	if newCursor == "" || newCursor == cur.Token {
		slog.Debug("reconcile no-op", "resource", resourceID, "cursor", cur.Token)
		return &Result{}, nil
	}

	// the cursor advances before any change content is processed
	if err := e.persistCursor(ctx, resourceID, newCursor); err != nil {
		return nil, err
	}

	result := &Result{}
	var worklist []*ChangeRecord

	for _, change := range changes {
		rec := newChangeRecord(change)
		if rec == nil {
			slog.Debug("change skipped", "resource", resourceID, "file", change.FileID, "reason", "removed or inaccessible")
			continue
		}
		if rec.MimeType == "" {
			// conservative: a record without a mime type is not actionable
			slog.Warn("change missing mime type, ignoring", "resource", resourceID, "file", rec.FileID)
			rec.Class = ClassIgnoredNonImage
			result.Records = append(result.Records, rec)
			continue
		}

		rec.Class = Classify(rec, e.rules)

		if rec.Class == ClassWatchedImage {
			if e.ledger.IsNew(rec.FileID) {
				if err := e.recordProcessed(ctx, rec.FileID); err != nil {
					return nil, err
				}
			} else {
				rec.Class = ClassAlreadyProcessed
			}
		}

		result.Records = append(result.Records, rec)
		if rec.Class.Dispatchable() {
			worklist = append(worklist, rec)
		}
	}

	if len(worklist) > 0 {
		e.dispatcher.Dispatch(ctx, resourceID, worklist)
		result.Dispatched = true
	}

	slog.Info("reconcile done",
		"resource", resourceID,
		"changes", len(changes),
		"dispatched", len(worklist),
		"cursor", newCursor,
	)
	return result, nil
}

// bootstrap primes the cursor of a never-seen resource at the current head
// of its change feed. History before this point is out of scope for a
// freshly-watched resource, so the run fetches nothing.
func (e *Engine) bootstrap(ctx context.Context, resourceID string) (*Result, error) {
	token, err := e.fetcher.StartPageToken(ctx, resourceID)
	if err != nil {
		return nil, &FetchError{ResourceID: resourceID, Err: err}
	}

	if err := e.persistCursor(ctx, resourceID, token); err != nil {
		return nil, err
	}

	slog.Info("cursor bootstrapped", "resource", resourceID, "cursor", token)
	return &Result{Bootstrapped: true}, nil
}

func (e *Engine) persistCursor(ctx context.Context, resourceID, token string) error {
	var err error
	for attempt := 0; attempt < persistRetries; attempt++ {
		if err = e.cursors.Put(ctx, resourceID, token); err == nil {
			return nil
		}
		slog.Warn("cursor persist failed, retrying", "resource", resourceID, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return &PersistError{Op: "cursor", Err: ctx.Err()}
		case <-time.After(persistRetryDelay):
		}
	}
	return &PersistError{Op: "cursor", Err: err}
}

func (e *Engine) recordProcessed(ctx context.Context, fileID string) error {
	var err error
	for attempt := 0; attempt < persistRetries; attempt++ {
		if err = e.ledger.Record(ctx, fileID); err == nil {
			return nil
		}
		slog.Warn("ledger persist failed, retrying", "file", fileID, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return &PersistError{Op: "ledger", Err: ctx.Err()}
		case <-time.After(persistRetryDelay):
		}
	}
	return &PersistError{Op: "ledger", Err: err}
}
