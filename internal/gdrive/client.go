package gdrive

import (
	"time"

	"github.com/Spountil/watermark-gdrive/internal/version"
	"github.com/imroc/req/v3"
)

const (
	defaultBaseURL   = "https://www.googleapis.com/drive/v3"
	defaultUploadURL = "https://www.googleapis.com/upload/drive/v3"

	// Shared drive ids are 33 characters long, personal resource ids are not.
	sharedDriveIDLen = 33
)

// Client talks to the Drive v3 API. It exposes the collaborators the sync
// core depends on: the change feed, file transfer and notification channels.
type Client struct {
	client    *req.Client
	uploadURL string

	Changes  *ChangesAPI
	Files    *FilesAPI
	Channels *ChannelsAPI
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API endpoint, used in tests.
func WithBaseURL(base, upload string) Option {
	return func(c *Client) {
		c.client.SetBaseURL(base)
		c.uploadURL = upload
	}
}

// WithTimeout bounds every API call. Defaults to 30s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.SetTimeout(d)
	}
}

// NewClient creates a Drive API client authenticated by ts.
func NewClient(ts TokenSource, opts ...Option) *Client {
	client := req.C().
		SetBaseURL(defaultBaseURL).
		SetTimeout(30 * time.Second).
		SetUserAgent("WatermarkDrive/" + version.Version).
		SetCommonRetryCount(3).
		SetCommonRetryBackoffInterval(1*time.Second, 5*time.Second).
		SetCommonErrorResult(&APIError{}).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	client.OnBeforeRequest(func(c *req.Client, r *req.Request) error {
		token, err := ts.Token(r.Context())
		if err != nil {
			return err
		}
		r.SetBearerAuthToken(token)
		return nil
	})

	c := &Client{
		client:    client,
		uploadURL: defaultUploadURL,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Changes = &ChangesAPI{client: client}
	c.Files = &FilesAPI{client: client, uploadURL: c.uploadURL}
	c.Channels = &ChannelsAPI{client: client}
	return c
}

// IsSharedDriveID reports whether a resource id refers to a shared drive,
// using the id length heuristic.
func IsSharedDriveID(resourceID string) bool {
	return len(resourceID) == sharedDriveIDLen
}
