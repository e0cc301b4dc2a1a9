package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"appstore/internal/domain/app"
)

// ErrNoFile is returned when an app has nothing to download.
var ErrNoFile = errors.New("this app has no downloadable file")

// AppStoreForDownload defines the store interface needed by DownloadApp.
type AppStoreForDownload interface {
	GetByID(ctx context.Context, id string) (app.App, error)
	IncrementDownloads(ctx context.Context, id string) (int64, error)
}

// URLSigner issues short-lived download URLs. The file name is bound into
// the URL's signature.
type URLSigner interface {
	Sign(objectKey, fileName string) (string, time.Time, error)
}

// DownloadObserver is told about every issued download.
type DownloadObserver interface {
	DownloadIssued()
}

// DownloadResult carries a signed download URL.
type DownloadResult struct {
	URL           string
	ExpiresAt     time.Time
	FileName      string
	DownloadCount int64
}

// DownloadAppDeps holds dependencies for DownloadApp.
type DownloadAppDeps struct {
	Apps     AppStoreForDownload
	Signer   URLSigner
	Observer DownloadObserver // optional
}

// ExecuteDownloadApp signs a download URL for the app's file and counts the
// download.
// PRE: caller is signed in
// POST: the counter is incremented only when a URL was issued
func ExecuteDownloadApp(ctx context.Context, appID string, deps DownloadAppDeps) (DownloadResult, error) {
	a, err := deps.Apps.GetByID(ctx, appID)
	if err != nil {
		return DownloadResult{}, err
	}
	if !a.HasFile() {
		return DownloadResult{}, ErrNoFile
	}

	url, expires, err := deps.Signer.Sign(a.FilePath, a.FileName)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("sign download: %w", err)
	}
	count, err := deps.Apps.IncrementDownloads(ctx, a.ID)
	if err != nil {
		// The link is still good; only the statistic is lost.
		slog.Error("download_count_failed", "app_id", a.ID, "error", err)
		count = a.DownloadCount
	}
	if deps.Observer != nil {
		deps.Observer.DownloadIssued()
	}
	slog.Info("catalog_event", "event", "download_issued", "app_id", a.ID, "downloads", count)
	return DownloadResult{URL: url, ExpiresAt: expires, FileName: a.FileName, DownloadCount: count}, nil
}
