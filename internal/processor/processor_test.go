package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spountil/watermark-gdrive/internal/gdrive"
	drivesync "github.com/Spountil/watermark-gdrive/internal/sync"
)

type upload struct {
	name     string
	mimeType string
	parentID string
	size     int
}

// fakeFiles is an in-memory FileService.
type fakeFiles struct {
	mu        sync.Mutex
	content   map[string][]byte
	byName    map[string]*gdrive.DriveFile
	downloads []string
	uploads   []upload
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{
		content: map[string][]byte{},
		byName:  map[string]*gdrive.DriveFile{},
	}
}

func (f *fakeFiles) Download(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.content[fileID]
	if !ok {
		return 0, gdrive.ErrFileNotFound
	}
	f.downloads = append(f.downloads, fileID)
	n, err := w.Write(data)
	return int64(n), err
}

func (f *fakeFiles) Upload(ctx context.Context, name, mimeType, parentID string, content io.Reader) (*gdrive.DriveFile, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, upload{name: name, mimeType: mimeType, parentID: parentID, size: len(data)})
	return &gdrive.DriveFile{ID: fmt.Sprintf("up-%d", len(f.uploads)), Name: name}, nil
}

func (f *fakeFiles) FindByName(ctx context.Context, name, mimeType string) (*gdrive.DriveFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if file, ok := f.byName[name]; ok {
		return file, nil
	}
	return nil, gdrive.ErrFileNotFound
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{B: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// seedAssets loads the fake drive with a settings document and a logo, both
// discoverable by name for the cold-fetch path.
func seedAssets(t *testing.T, files *fakeFiles) {
	t.Helper()
	files.content["settings-id"] = []byte(`{"colors": "(255, 255, 255)", "opacity": 50}`)
	files.content["logo-id"] = pngBytes(t, 8, 8)
	files.byName[SettingsFileName] = &gdrive.DriveFile{ID: "settings-id", Name: SettingsFileName}
	files.byName[LogoFileName] = &gdrive.DriveFile{ID: "logo-id", Name: LogoFileName}
}

func imageRecord(fileID, name string, size int64) *drivesync.ChangeRecord {
	return &drivesync.ChangeRecord{
		FileID:   fileID,
		Name:     name,
		MimeType: "image/png",
		Parents:  mapset.NewSet("watched"),
		Size:     size,
		Class:    drivesync.ClassWatchedImage,
	}
}

func settingsRecord(fileID, name string) *drivesync.ChangeRecord {
	return &drivesync.ChangeRecord{
		FileID:  fileID,
		Name:    name,
		Parents: mapset.NewSet("settings"),
		Class:   drivesync.ClassSettingsAsset,
	}
}

func TestProcessor_StampsAndUploadsImage(t *testing.T) {
	files := newFakeFiles()
	seedAssets(t, files)
	photo := pngBytes(t, 64, 64)
	files.content["photo-id"] = photo

	cache := NewAssetCache(files, t.TempDir())
	proc := New(files, cache, "results-folder")

	proc.Dispatch(context.Background(), "R1", []*drivesync.ChangeRecord{
		imageRecord("photo-id", "house.jpg", int64(len(photo))),
	})

	require.Len(t, files.uploads, 1)
	up := files.uploads[0]
	assert.Equal(t, "house.png", up.name, "output name swaps the extension")
	assert.Equal(t, "image/png", up.mimeType)
	assert.Equal(t, "results-folder", up.parentID)
	assert.Positive(t, up.size)
}

func TestProcessor_SettingsRefreshedBeforeImages(t *testing.T) {
	files := newFakeFiles()
	seedAssets(t, files)
	files.content["photo-id"] = pngBytes(t, 32, 32)

	cache := NewAssetCache(files, t.TempDir())
	proc := New(files, cache, "results-folder")

	// the image is first in feed order; the settings asset must still win
	proc.Dispatch(context.Background(), "R1", []*drivesync.ChangeRecord{
		imageRecord("photo-id", "pic.png", 0),
		settingsRecord("settings-id", SettingsFileName),
	})

	require.NotEmpty(t, files.downloads)
	assert.Equal(t, "settings-id", files.downloads[0])
	require.Len(t, files.uploads, 1)
}

func TestProcessor_ColdFetchesMissingAssets(t *testing.T) {
	files := newFakeFiles()
	seedAssets(t, files)
	files.content["photo-id"] = pngBytes(t, 16, 16)

	cache := NewAssetCache(files, t.TempDir())
	proc := New(files, cache, "results-folder")

	// no settings asset in the batch and an empty cache dir: both assets
	// come from the by-name lookup
	proc.Dispatch(context.Background(), "R1", []*drivesync.ChangeRecord{
		imageRecord("photo-id", "pic.png", 0),
	})

	assert.Contains(t, files.downloads, "settings-id")
	assert.Contains(t, files.downloads, "logo-id")
	require.Len(t, files.uploads, 1)
}

func TestProcessor_RefreshInvalidatesComposer(t *testing.T) {
	files := newFakeFiles()
	seedAssets(t, files)
	files.content["photo-id"] = pngBytes(t, 16, 16)

	cache := NewAssetCache(files, t.TempDir())
	proc := New(files, cache, "results-folder")

	ctx := context.Background()
	proc.Dispatch(ctx, "R1", []*drivesync.ChangeRecord{
		imageRecord("photo-id", "pic.png", 0),
	})
	logoFetches := countOf(files.downloads, "logo-id")

	// a new logo version arrives; the next image rebuilds the compositor
	proc.Dispatch(ctx, "R1", []*drivesync.ChangeRecord{
		settingsRecord("logo-id", LogoFileName),
	})
	proc.Dispatch(ctx, "R1", []*drivesync.ChangeRecord{
		imageRecord("photo-id", "pic2.png", 0),
	})

	assert.Greater(t, countOf(files.downloads, "logo-id"), logoFetches)
	assert.Len(t, files.uploads, 2)
}

func TestProcessor_IgnorePatternsSkipFiles(t *testing.T) {
	files := newFakeFiles()
	seedAssets(t, files)
	files.content["photo-id"] = pngBytes(t, 16, 16)

	cache := NewAssetCache(files, t.TempDir())
	proc := New(files, cache, "results-folder", WithIgnorePatterns("draft_*", "*.tmp"))

	proc.Dispatch(context.Background(), "R1", []*drivesync.ChangeRecord{
		imageRecord("photo-id", "draft_house.png", 0),
	})

	assert.Empty(t, files.uploads)
	assert.Empty(t, files.downloads, "ignored files are never downloaded")
}

func TestProcessor_FailedRecordDoesNotAbortBatch(t *testing.T) {
	files := newFakeFiles()
	seedAssets(t, files)
	files.content["good-id"] = pngBytes(t, 16, 16)
	files.content["broken-id"] = []byte("not an image")

	cache := NewAssetCache(files, t.TempDir())
	proc := New(files, cache, "results-folder")

	proc.Dispatch(context.Background(), "R1", []*drivesync.ChangeRecord{
		{FileID: "missing-id", Name: "gone.png", Class: drivesync.ClassWatchedImage, Parents: mapset.NewSet[string]()},
		imageRecord("broken-id", "broken.png", 0),
		imageRecord("good-id", "good.png", 0),
	})

	require.Len(t, files.uploads, 1)
	assert.Equal(t, "good.png", files.uploads[0].name)
}

func TestProcessor_UnknownSettingsAssetRejected(t *testing.T) {
	files := newFakeFiles()
	cache := NewAssetCache(files, t.TempDir())

	err := cache.Refresh(context.Background(), "x", "evil.sh")
	require.Error(t, err)
	assert.False(t, errors.Is(err, gdrive.ErrFileNotFound))
}

func countOf(items []string, want string) int {
	n := 0
	for _, item := range items {
		if item == want {
			n++
		}
	}
	return n
}
