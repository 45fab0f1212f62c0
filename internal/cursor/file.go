package cursor

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Spountil/watermark-gdrive/internal/utils"
	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
)

// fileEntry is the on-disk value, keyed by resource id in a single JSON doc.
type fileEntry struct {
	Token       string `json:"token"`
	LastUpdated string `json:"last_updated"`
}

// FileStore persists cursors in a single JSON document. Writes go through a
// temp file + rename and an advisory file lock, so concurrent processes
// cannot interleave read-modify-write cycles.
type FileStore struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

func NewFileStore(path string) (*FileStore, error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("ensure cursor store dir: %w", err)
	}
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (s *FileStore) Get(ctx context.Context, resourceID string) (*Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.load()
	if err != nil {
		return nil, err
	}

	entry, ok := entries[resourceID]
	if !ok {
		return nil, nil
	}

	lastUpdated, err := time.Parse(time.RFC3339, entry.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("parse stored timestamp for %s: %w", resourceID, err)
	}

	return &Cursor{
		ResourceID:  resourceID,
		Token:       entry.Token,
		LastUpdated: lastUpdated,
	}, nil
}

func (s *FileStore) Put(ctx context.Context, resourceID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked, err := s.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock cursor store: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock cursor store: not acquired")
	}
	defer s.lock.Unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}

	entries[resourceID] = fileEntry{
		Token:       token,
		LastUpdated: time.Now().UTC().Format(time.RFC3339),
	}

	return s.save(entries)
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) load() (map[string]fileEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]fileEntry{}, nil
		}
		return nil, fmt.Errorf("read cursor store: %w", err)
	}

	entries := map[string]fileEntry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		// corrupted store starts over, matching the bootstrap path
		return map[string]fileEntry{}, nil
	}
	return entries, nil
}

func (s *FileStore) save(entries map[string]fileEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cursor store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cursor store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit cursor store: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
