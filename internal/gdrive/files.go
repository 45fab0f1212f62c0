package gdrive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/imroc/req/v3"
)

// FilesAPI wraps file content transfer and metadata queries.
type FilesAPI struct {
	client    *req.Client
	uploadURL string
}

// Download streams the content of a file into w and returns the number of
// bytes written.
func (a *FilesAPI) Download(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	res, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"alt":               "media",
			"supportsAllDrives": "true",
		}).
		SetOutput(cw).
		Get("/files/" + fileID)

	if err := handleAPIError(res, err, "files.get media"); err != nil {
		return 0, err
	}
	return cw.n, nil
}

// DownloadToFile downloads a file to destPath, creating parent directories.
func (a *FilesAPI) DownloadToFile(ctx context.Context, fileID, destPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("create destination dir: %w", err)
	}

	f, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("create destination file: %w", err)
	}
	defer f.Close()

	return a.Download(ctx, fileID, f)
}

// Upload creates a new file with the given metadata and content. It uses the
// two-step flow: create the metadata, then attach the media.
func (a *FilesAPI) Upload(ctx context.Context, name, mimeType, parentID string, content io.Reader) (*DriveFile, error) {
	meta := &DriveFile{
		Name: name,
	}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	var created DriveFile
	res, err := a.client.R().
		SetContext(ctx).
		SetQueryParam("supportsAllDrives", "true").
		SetBodyJsonMarshal(meta).
		SetSuccessResult(&created).
		Post("/files")
	if err := handleAPIError(res, err, "files.create"); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("read upload content: %w", err)
	}

	var updated DriveFile
	res, err = a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"uploadType":        "media",
			"supportsAllDrives": "true",
			"fields":            "id,name,mimeType,size,parents",
		}).
		SetContentType(mimeType).
		SetBody(bytes.NewReader(data)).
		SetSuccessResult(&updated).
		Patch(a.uploadURL + "/files/" + created.ID)
	if err := handleAPIError(res, err, "files.update media"); err != nil {
		return nil, err
	}

	return &updated, nil
}

// FindByName looks up a file by exact name and mime type across the drive.
// Used to re-fetch the settings and logo assets when the local cache is cold.
func (a *FilesAPI) FindByName(ctx context.Context, name, mimeType string) (*DriveFile, error) {
	var out fileList
	res, err := a.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":      fmt.Sprintf("mimeType='%s'", mimeType),
			"spaces": "drive",
			"fields": "nextPageToken,files(id,name,size)",
		}).
		SetSuccessResult(&out).
		Get("/files")
	if err := handleAPIError(res, err, "files.list"); err != nil {
		return nil, err
	}

	for _, f := range out.Files {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, ErrFileNotFound
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
