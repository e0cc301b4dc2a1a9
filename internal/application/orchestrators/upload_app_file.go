package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"appstore/internal/domain/app"
)

// ErrEmptyUpload is returned for uploads with no content.
var ErrEmptyUpload = errors.New("choose a file to upload")

// AppStoreForUpload defines the store interface needed by UploadAppFile.
type AppStoreForUpload interface {
	GetByID(ctx context.Context, id string) (app.App, error)
	SetFile(ctx context.Context, id string, file app.FileInfo) error
}

// BlobStore stores and removes uploaded files.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (int64, error)
	Delete(ctx context.Context, key string) error
}

// UploadAppFileInput carries one uploaded file.
type UploadAppFileInput struct {
	AppID       string
	FileName    string
	ContentType string
	Body        io.Reader
}

// UploadAppFileDeps holds dependencies for UploadAppFile.
type UploadAppFileDeps struct {
	Apps  AppStoreForUpload
	Blobs BlobStore
	Now   func() time.Time
}

// ExecuteUploadAppFile stores the file under apps/<appID>/<unixMillis>.<ext>
// and records its metadata on the app.
// PRE: caller is an admin
// POST: a replaced file is removed from the blob store
func ExecuteUploadAppFile(ctx context.Context, input UploadAppFileInput, deps UploadAppFileDeps) (app.FileInfo, error) {
	now := clock(deps.Now)
	existing, err := deps.Apps.GetByID(ctx, input.AppID)
	if err != nil {
		return app.FileInfo{}, err
	}

	name := path.Base(strings.ReplaceAll(strings.TrimSpace(input.FileName), `\`, "/"))
	if name == "." || name == "/" {
		name = ""
	}
	key := app.FileKey(existing.ID, name, now())
	size, err := deps.Blobs.Put(ctx, key, input.Body)
	if err != nil {
		return app.FileInfo{}, fmt.Errorf("store upload: %w", err)
	}
	if size == 0 {
		_ = deps.Blobs.Delete(ctx, key)
		return app.FileInfo{}, ErrEmptyUpload
	}

	info := app.FileInfo{Path: key, Name: name, Size: size, Type: contentType(input.ContentType, name)}
	if err := deps.Apps.SetFile(ctx, existing.ID, info); err != nil {
		_ = deps.Blobs.Delete(ctx, key)
		return app.FileInfo{}, fmt.Errorf("record upload: %w", err)
	}
	if existing.HasFile() && existing.FilePath != key {
		if err := deps.Blobs.Delete(ctx, existing.FilePath); err != nil {
			slog.Warn("blob_delete_failed", "key", existing.FilePath, "error", err)
		}
	}
	slog.Info("catalog_event", "event", "app_file_uploaded", "app_id", existing.ID, "key", key, "bytes", size)
	return info, nil
}

func contentType(declared, name string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
