package orchestrators

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"appstore/internal/domain/app"
	"appstore/internal/domain/rating"
)

// RatingStoreForRate defines the rating store interface needed by RateApp.
type RatingStoreForRate interface {
	Add(ctx context.Context, r rating.Rating) error
}

// AppLookup loads apps by id.
type AppLookup interface {
	GetByID(ctx context.Context, id string) (app.App, error)
}

// RateAppInput carries input for the rate-app orchestrator.
type RateAppInput struct {
	AppID     string
	AccountID string
	Score     int
	Comment   string
}

// RateAppDeps holds dependencies for RateApp.
type RateAppDeps struct {
	Ratings    RatingStoreForRate
	Apps       AppLookup
	Now        func() time.Time
	GenerateID func() string
}

// ExecuteRateApp stores a rating for an app.
// PRE: AccountID is the signed-in caller's account
// POST: rating is stored with a score between 1 and 5
func ExecuteRateApp(ctx context.Context, input RateAppInput, deps RateAppDeps) (rating.Rating, error) {
	now := clock(deps.Now)
	r := rating.Rating{
		ID:        idGen(deps.GenerateID)(),
		AppID:     input.AppID,
		AccountID: input.AccountID,
		Score:     input.Score,
		Comment:   strings.TrimSpace(input.Comment),
		CreatedAt: now(),
	}
	if err := r.Validate(); err != nil {
		return rating.Rating{}, err
	}
	if _, err := deps.Apps.GetByID(ctx, r.AppID); err != nil {
		return rating.Rating{}, err
	}
	if err := deps.Ratings.Add(ctx, r); err != nil {
		return rating.Rating{}, err
	}
	slog.Info("catalog_event", "event", "app_rated", "app_id", r.AppID, "score", r.Score)
	return r, nil
}
