package orchestrators

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"appstore/internal/domain/app"
)

// VersionStoreForAdd defines the store interfaces needed by AddVersion.
type VersionStoreForAdd interface {
	GetByID(ctx context.Context, id string) (app.App, error)
	AddVersion(ctx context.Context, v app.Version) error
}

// AddVersionInput carries input for the add-version orchestrator.
type AddVersionInput struct {
	AppID        string
	Version      string
	ReleaseNotes string
}

// AddVersionDeps holds dependencies for AddVersion.
type AddVersionDeps struct {
	Store      VersionStoreForAdd
	Now        func() time.Time
	GenerateID func() string
}

// ExecuteAddVersion records a release and makes it the app's current version.
// PRE: caller is an admin
func ExecuteAddVersion(ctx context.Context, input AddVersionInput, deps AddVersionDeps) (app.Version, error) {
	now := clock(deps.Now)
	v := app.Version{
		ID:           idGen(deps.GenerateID)(),
		AppID:        strings.TrimSpace(input.AppID),
		Version:      strings.TrimSpace(input.Version),
		ReleaseNotes: strings.TrimSpace(input.ReleaseNotes),
		CreatedAt:    now(),
	}
	if err := v.Validate(); err != nil {
		return app.Version{}, err
	}
	if _, err := deps.Store.GetByID(ctx, v.AppID); err != nil {
		return app.Version{}, err
	}
	if err := deps.Store.AddVersion(ctx, v); err != nil {
		return app.Version{}, err
	}
	slog.Info("catalog_event", "event", "version_added", "app_id", v.AppID, "version", v.Version)
	return v, nil
}
