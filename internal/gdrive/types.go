package gdrive

// DriveFile is the subset of the Drive file resource the sync core consumes.
type DriveFile struct {
	ID       string   `json:"id,omitempty"`
	Name     string   `json:"name,omitempty"`
	MimeType string   `json:"mimeType,omitempty"`
	Trashed  bool     `json:"trashed,omitempty"`
	Parents  []string `json:"parents,omitempty"`
	Size     string   `json:"size,omitempty"` // Drive serializes int64 as string
}

// Change is a single entry of a changes.list page. A nil File means the
// resource was removed or is no longer accessible.
type Change struct {
	FileID string     `json:"fileId"`
	File   *DriveFile `json:"file,omitempty"`
}

// changeList is the wire shape of changes.list.
type changeList struct {
	Changes           []*Change `json:"changes"`
	NextPageToken     string    `json:"nextPageToken,omitempty"`
	NewStartPageToken string    `json:"newStartPageToken,omitempty"`
}

// startPageToken is the wire shape of changes.getStartPageToken.
type startPageToken struct {
	StartPageToken string `json:"startPageToken"`
}

// fileList is the wire shape of files.list.
type fileList struct {
	Files         []*DriveFile `json:"files"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
}

// Channel is a push notification channel (channels resource).
type Channel struct {
	ID         string `json:"id"`
	Type       string `json:"type,omitempty"`
	Address    string `json:"address,omitempty"`
	Token      string `json:"token,omitempty"`
	ResourceID string `json:"resourceId,omitempty"`
	Expiration string `json:"expiration,omitempty"`
}
