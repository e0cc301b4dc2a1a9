package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	web "appstore/internal/adapters/http"
	"appstore/internal/adapters/metrics"
	"appstore/internal/bootstrap"
)

// visitorIdle is how long a client's rate limiter bucket survives unused.
const visitorIdle = 30 * time.Minute

// scheduleSweeps registers the housekeeping jobs on schedule.
func scheduleSweeps(schedule string, ident bootstrap.Identity, srv *web.Server, m *metrics.Metrics) (*cron.Cron, error) {
	c := cron.New()
	if ident.Sweep != nil {
		if _, err := c.AddFunc(schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			n, err := ident.Sweep(ctx)
			if err != nil {
				slog.Error("sweep_failed", "job", "identity", "error", err)
				return
			}
			m.Swept("identity", n)
			slog.Debug("sweep_done", "job", "identity", "removed", n)
		}); err != nil {
			return nil, err
		}
	}
	if _, err := c.AddFunc(schedule, func() {
		n := srv.SweepVisitors(visitorIdle)
		m.Swept("rate_limiter", n)
		slog.Debug("sweep_done", "job", "rate_limiter", "removed", n)
	}); err != nil {
		return nil, err
	}
	return c, nil
}
