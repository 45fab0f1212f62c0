package dedup

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/Spountil/watermark-gdrive/internal/utils"
	"github.com/goccy/go-json"
)

// FileWatermarkStore keeps channel watermarks in a single JSON document.
type FileWatermarkStore struct {
	path string
	mu   sync.Mutex
}

func NewFileWatermarkStore(path string) (*FileWatermarkStore, error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("ensure watermark store dir: %w", err)
	}
	return &FileWatermarkStore{path: path}, nil
}

func (s *FileWatermarkStore) Get(ctx context.Context, channelID string) (uint64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks, err := loadJSONDoc[map[string]uint64](s.path)
	if err != nil {
		return 0, false, err
	}
	n, ok := (*marks)[channelID]
	return n, ok, nil
}

func (s *FileWatermarkStore) Put(ctx context.Context, channelID string, n uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks, err := loadJSONDoc[map[string]uint64](s.path)
	if err != nil {
		return err
	}
	if *marks == nil {
		*marks = map[string]uint64{}
	}
	(*marks)[channelID] = n
	return saveJSONDoc(s.path, marks)
}

var _ WatermarkStore = (*FileWatermarkStore)(nil)

// FileLedgerStore keeps the processed-file ledger as a JSON array document.
type FileLedgerStore struct {
	path string
	mu   sync.Mutex
}

func NewFileLedgerStore(path string) (*FileLedgerStore, error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("ensure ledger store dir: %w", err)
	}
	return &FileLedgerStore{path: path}, nil
}

func (s *FileLedgerStore) Get(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, err := loadJSONDoc[[]string](s.path)
	if err != nil {
		return nil, err
	}
	return *ids, nil
}

func (s *FileLedgerStore) Put(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveJSONDoc(s.path, &ids)
}

var _ LedgerStore = (*FileLedgerStore)(nil)

// loadJSONDoc reads a JSON document, returning the zero value when the file
// is absent or corrupted.
func loadJSONDoc[T any](path string) (*T, error) {
	var doc T

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &doc, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		var zero T
		return &zero, nil
	}
	return &doc, nil
}

// saveJSONDoc writes a JSON document through a temp file + rename.
func saveJSONDoc[T any](path string, doc *T) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit %s: %w", path, err)
	}
	return nil
}
