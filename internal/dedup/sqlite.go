package dedup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS delivery_watermarks (
    channel_id TEXT PRIMARY KEY,
    message_number INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS processed_files (
    position INTEGER PRIMARY KEY AUTOINCREMENT,
    file_id TEXT NOT NULL
);
`

// SqliteWatermarkStore persists per-channel watermarks in SQLite.
type SqliteWatermarkStore struct {
	db *sqlx.DB
}

func NewSqliteWatermarkStore(db *sqlx.DB) (*SqliteWatermarkStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initialize dedup schema: %w", err)
	}
	return &SqliteWatermarkStore{db: db}, nil
}

func (s *SqliteWatermarkStore) Get(ctx context.Context, channelID string) (uint64, bool, error) {
	var n uint64
	err := s.db.QueryRowContext(ctx,
		"SELECT message_number FROM delivery_watermarks WHERE channel_id = ?", channelID,
	).Scan(&n)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("query watermark %s: %w", channelID, err)
	}
	return n, true, nil
}

func (s *SqliteWatermarkStore) Put(ctx context.Context, channelID string, n uint64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO delivery_watermarks (channel_id, message_number) VALUES (?, ?)",
		channelID, n,
	)
	if err != nil {
		return fmt.Errorf("put watermark %s: %w", channelID, err)
	}
	return nil
}

var _ WatermarkStore = (*SqliteWatermarkStore)(nil)

// SqliteLedgerStore persists the processed-file ledger in SQLite. Put
// replaces the whole list in one transaction so a crash can never leave a
// half-written ledger.
type SqliteLedgerStore struct {
	db *sqlx.DB
}

func NewSqliteLedgerStore(db *sqlx.DB) (*SqliteLedgerStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("initialize dedup schema: %w", err)
	}
	return &SqliteLedgerStore{db: db}, nil
}

func (s *SqliteLedgerStore) Get(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT file_id FROM processed_files ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger iteration: %w", err)
	}
	return ids, nil
}

func (s *SqliteLedgerStore) Put(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM processed_files"); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, "INSERT INTO processed_files (file_id) VALUES (?)", id); err != nil {
			return fmt.Errorf("insert ledger id: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}
	return nil
}

var _ LedgerStore = (*SqliteLedgerStore)(nil)
