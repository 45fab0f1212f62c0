package cursor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS cursors (
    resource_id TEXT PRIMARY KEY,
    token TEXT NOT NULL,
    last_updated TEXT NOT NULL -- RFC3339
);
`

// SqliteStore persists cursors in a SQLite table.
type SqliteStore struct {
	db *sqlx.DB
}

// NewSqliteStore initializes the cursor schema on db.
func NewSqliteStore(db *sqlx.DB) (*SqliteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initialize cursor schema: %w", err)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Get(ctx context.Context, resourceID string) (*Cursor, error) {
	var token, updated string
	err := s.db.QueryRowContext(ctx,
		"SELECT token, last_updated FROM cursors WHERE resource_id = ?", resourceID,
	).Scan(&token, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // not found is not an error here
		}
		return nil, fmt.Errorf("query cursor %s: %w", resourceID, err)
	}

	lastUpdated, err := time.Parse(time.RFC3339, updated)
	if err != nil {
		return nil, fmt.Errorf("parse stored timestamp for %s: %w", resourceID, err)
	}

	return &Cursor{
		ResourceID:  resourceID,
		Token:       token,
		LastUpdated: lastUpdated,
	}, nil
}

func (s *SqliteStore) Put(ctx context.Context, resourceID, token string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO cursors (resource_id, token, last_updated) VALUES (?, ?, ?)",
		resourceID, token, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("put cursor %s: %w", resourceID, err)
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return nil // db lifetime is owned by the caller
}

var _ Store = (*SqliteStore)(nil)
