// Package processor is the downstream consumer of the reconciliation core:
// it turns dispatched change records into watermarked uploads.
package processor

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dustin/go-humanize"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/Spountil/watermark-gdrive/internal/queue"
	drivesync "github.com/Spountil/watermark-gdrive/internal/sync"
)

// Batch priorities. Settings assets go first so an image in the same batch
// is stamped with the configuration that arrived alongside it.
const (
	prioritySettings = 0
	priorityImage    = 1
)

// Processor implements the reconciliation engine's dispatch boundary. Each
// batch is drained in priority order; a failed record is logged and skipped,
// the rest of the batch still runs.
type Processor struct {
	files           FileService
	cache           *AssetCache
	resultsFolderID string
	ignorer         *ignore.GitIgnore
}

// Option configures a Processor.
type Option func(*Processor)

// WithIgnorePatterns skips files whose names match any of the gitignore-style
// patterns, e.g. "*.tmp" or "draft_*".
func WithIgnorePatterns(patterns ...string) Option {
	return func(p *Processor) {
		p.ignorer = ignore.CompileIgnoreLines(patterns...)
	}
}

func New(files FileService, cache *AssetCache, resultsFolderID string, opts ...Option) *Processor {
	p := &Processor{
		files:           files,
		cache:           cache,
		resultsFolderID: resultsFolderID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dispatch consumes one classified batch.
func (p *Processor) Dispatch(ctx context.Context, resourceID string, records []*drivesync.ChangeRecord) {
	pq := queue.NewPriorityQueue[*drivesync.ChangeRecord]()
	for _, rec := range records {
		priority := priorityImage
		if rec.Class == drivesync.ClassSettingsAsset {
			priority = prioritySettings
		}
		pq.Enqueue(rec, priority)
	}

	for _, rec := range pq.DequeueAll() {
		if err := p.handle(ctx, rec); err != nil {
			slog.Error("record processing failed",
				"resource", resourceID,
				"file", rec.FileID,
				"name", rec.Name,
				"error", err,
			)
		}
	}
}

func (p *Processor) handle(ctx context.Context, rec *drivesync.ChangeRecord) error {
	if p.ignorer != nil && p.ignorer.MatchesPath(rec.Name) {
		slog.Debug("file matches ignore pattern, skipping", "name", rec.Name)
		return nil
	}

	switch rec.Class {
	case drivesync.ClassSettingsAsset:
		return p.cache.Refresh(ctx, rec.FileID, rec.Name)
	case drivesync.ClassWatchedImage:
		return p.stampAndUpload(ctx, rec)
	default:
		return nil
	}
}

func (p *Processor) stampAndUpload(ctx context.Context, rec *drivesync.ChangeRecord) error {
	composer, err := p.cache.Composer(ctx)
	if err != nil {
		return fmt.Errorf("prepare compositor: %w", err)
	}

	var original bytes.Buffer
	n, err := p.files.Download(ctx, rec.FileID, &original)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if rec.Size > 0 && n != rec.Size {
		slog.Warn("downloaded size differs from change metadata",
			"file", rec.FileID,
			"expected", humanize.Bytes(uint64(rec.Size)),
			"got", humanize.Bytes(uint64(n)),
		)
	}

	var stamped bytes.Buffer
	if err := composer.Stamp(&stamped, &original); err != nil {
		return fmt.Errorf("watermark: %w", err)
	}

	outName := outputName(rec.Name)
	uploaded, err := p.files.Upload(ctx, outName, "image/png", p.resultsFolderID, &stamped)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	slog.Info("watermarked image uploaded",
		"source", rec.Name,
		"result", outName,
		"result_id", uploaded.ID,
		"size", humanize.Bytes(uint64(stamped.Len())),
	)
	return nil
}

// outputName swaps the extension for .png, matching the compositor output.
func outputName(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name + ".png"
}
