// Package sync implements the change-cursor reconciliation core: given a
// webhook notification and the stored cursor for the resource, it decides
// which remote changes are new, which were already handled, and how to
// advance durable progress so that duplicate delivery or a crash never loses
// or replays a change within the dedup window.
package sync

import (
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/Spountil/watermark-gdrive/internal/gdrive"
)

// ChangeClass is the terminal classification of a single change entry.
type ChangeClass string

const (
	ClassIgnoredTrashed         ChangeClass = "ignored-trashed"
	ClassIgnoredNonImage        ChangeClass = "ignored-non-image"
	ClassIgnoredUnwatchedFolder ChangeClass = "ignored-unwatched-folder"
	ClassSettingsAsset          ChangeClass = "settings-asset"
	ClassWatchedImage           ChangeClass = "watched-image"
	ClassAlreadyProcessed       ChangeClass = "already-processed"
)

// Dispatchable reports whether a change of this class is handed downstream.
func (c ChangeClass) Dispatchable() bool {
	return c == ClassWatchedImage || c == ClassSettingsAsset
}

// ChangeRecord is one classified entry of a fetch batch. It is transient:
// only the cursor and the ledger survive a run.
type ChangeRecord struct {
	FileID   string
	Name     string
	MimeType string
	Trashed  bool
	Parents  mapset.Set[string]
	Size     int64
	Class    ChangeClass
}

// newChangeRecord maps a raw change entry into a record. Returns nil for
// entries without a file payload (deleted or inaccessible resources).
func newChangeRecord(change *gdrive.Change) *ChangeRecord {
	if change == nil || change.File == nil {
		return nil
	}

	return &ChangeRecord{
		FileID:   change.FileID,
		Name:     change.File.Name,
		MimeType: change.File.MimeType,
		Trashed:  change.File.Trashed,
		Parents:  mapset.NewSet(change.File.Parents...),
		Size:     parseSize(change.File.Size),
	}
}

func parseSize(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
