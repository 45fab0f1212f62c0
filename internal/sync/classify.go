package sync

import "strings"

// Rules holds the folder topology the classifier decides against.
type Rules struct {
	// WatchedFolderID is the folder whose images trigger processing.
	WatchedFolderID string
	// SettingsFolderID holds settings.json and the logo asset. Changes here
	// always refresh the local cache and are never deduped.
	SettingsFolderID string
	// ResultsFolderID receives processed output. Changes here are ignored to
	// avoid a feedback loop of the core reprocessing its own uploads.
	ResultsFolderID string
	// SettingsBeforeMime evaluates the settings-folder rule ahead of the
	// image-mime filter, so non-image assets like settings.json still
	// classify as settings-asset. Historical behavior differed; this is the
	// supported ordering knob.
	SettingsBeforeMime bool
}

// Classify assigns a class to a change record. It is a pure function of
// (record, rules): same inputs always yield the same class. File-level dedup
// of watched images happens afterwards against the ledger, turning
// watched-image into already-processed.
func Classify(rec *ChangeRecord, rules Rules) ChangeClass {
	if rec == nil {
		return ClassIgnoredTrashed
	}

	if rec.Trashed {
		return ClassIgnoredTrashed
	}

	inSettings := rules.SettingsFolderID != "" && rec.Parents.Contains(rules.SettingsFolderID)

	if rules.SettingsBeforeMime && inSettings {
		return ClassSettingsAsset
	}

	if !strings.Contains(rec.MimeType, "image/") {
		return ClassIgnoredNonImage
	}

	if rules.ResultsFolderID != "" && rec.Parents.Contains(rules.ResultsFolderID) {
		return ClassIgnoredUnwatchedFolder
	}

	if rec.Parents.Contains(rules.WatchedFolderID) {
		return ClassWatchedImage
	}

	if !rules.SettingsBeforeMime && inSettings {
		return ClassSettingsAsset
	}

	return ClassIgnoredUnwatchedFolder
}
