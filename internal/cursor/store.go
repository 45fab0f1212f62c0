// Package cursor persists the per-resource change-feed position.
//
// A cursor is an opaque provider-assigned page token. The store keeps at
// most one live cursor per resource id and never interprets the token.
package cursor

import (
	"context"
	"time"
)

// Cursor is the last-acknowledged position in a resource's change feed.
type Cursor struct {
	ResourceID  string    `json:"-" db:"resource_id"`
	Token       string    `json:"token" db:"token"`
	LastUpdated time.Time `json:"last_updated" db:"-"`
}

// Store is the durable backing for resource cursors. Get returns (nil, nil)
// when no cursor exists for the resource.
type Store interface {
	Get(ctx context.Context, resourceID string) (*Cursor, error)
	Put(ctx context.Context, resourceID, token string) error
	Close() error
}
