package processor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/Spountil/watermark-gdrive/internal/gdrive"
	"github.com/Spountil/watermark-gdrive/internal/utils"
	"github.com/Spountil/watermark-gdrive/internal/watermark"
)

// FileService is the slice of the Drive API the processor needs.
// *gdrive.FilesAPI satisfies it.
type FileService interface {
	Download(ctx context.Context, fileID string, w io.Writer) (int64, error)
	Upload(ctx context.Context, name, mimeType, parentID string, content io.Reader) (*gdrive.DriveFile, error)
	FindByName(ctx context.Context, name, mimeType string) (*gdrive.DriveFile, error)
}

// AssetCache keeps local copies of the settings document and the logo under
// the data dir, and builds the compositor from them. When either asset is
// missing it is fetched from the drive by name, the same way a cold start
// would.
type AssetCache struct {
	files   FileService
	dataDir string

	mu       sync.Mutex
	composer *watermark.Composer
}

func NewAssetCache(files FileService, dataDir string) *AssetCache {
	return &AssetCache{files: files, dataDir: dataDir}
}

func (c *AssetCache) SettingsPath() string {
	return filepath.Join(c.dataDir, "settings", SettingsFileName)
}

func (c *AssetCache) LogoPath() string {
	return filepath.Join(c.dataDir, "logo", LogoFileName)
}

// Refresh replaces the cached copy of a settings asset with the version
// identified by fileID, and drops the prepared compositor so the next stamp
// picks the change up.
func (c *AssetCache) Refresh(ctx context.Context, fileID, name string) error {
	path, err := c.pathFor(name)
	if err != nil {
		return err
	}
	if err := c.download(ctx, fileID, path); err != nil {
		return err
	}

	c.mu.Lock()
	c.composer = nil
	c.mu.Unlock()

	slog.Info("settings asset refreshed", "name", name, "path", path)
	return nil
}

// Composer returns the prepared compositor, building it on first use and
// after every Refresh.
func (c *AssetCache) Composer(ctx context.Context) (*watermark.Composer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.composer != nil {
		return c.composer, nil
	}

	if err := c.ensure(ctx, SettingsFileName, "application/json", c.SettingsPath()); err != nil {
		return nil, err
	}
	if err := c.ensure(ctx, LogoFileName, "image/png", c.LogoPath()); err != nil {
		return nil, err
	}

	settings, err := LoadSettings(c.SettingsPath())
	if err != nil {
		return nil, err
	}

	logo, err := os.Open(c.LogoPath())
	if err != nil {
		return nil, fmt.Errorf("open logo: %w", err)
	}
	defer logo.Close()

	composer, err := watermark.NewComposer(logo, settings.Options())
	if err != nil {
		return nil, err
	}
	c.composer = composer
	return composer, nil
}

func (c *AssetCache) pathFor(name string) (string, error) {
	switch name {
	case SettingsFileName:
		return c.SettingsPath(), nil
	case LogoFileName:
		return c.LogoPath(), nil
	default:
		return "", fmt.Errorf("unknown settings asset %q", name)
	}
}

// ensure fetches the asset by name when the cached copy is absent.
func (c *AssetCache) ensure(ctx context.Context, name, mimeType, path string) error {
	if utils.FileExists(path) {
		return nil
	}

	slog.Warn("settings asset missing, fetching from drive", "name", name)
	file, err := c.files.FindByName(ctx, name, mimeType)
	if err != nil {
		return fmt.Errorf("locate %s: %w", name, err)
	}
	return c.download(ctx, file.ID, path)
}

func (c *AssetCache) download(ctx context.Context, fileID, path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	var buf bytes.Buffer
	n, err := c.files.Download(ctx, fileID, &buf)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write asset: %w", err)
	}
	slog.Debug("asset downloaded", "file", fileID, "size", humanize.Bytes(uint64(n)))
	return nil
}
