package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"appstore/internal/adapters/blob"
	web "appstore/internal/adapters/http"
	"appstore/internal/adapters/metrics"
	"appstore/internal/application/orchestrators"
	"appstore/internal/auth"
	"appstore/internal/bootstrap"
	"appstore/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		slog.Error("server_failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	m := metrics.New()
	catalog, err := bootstrap.OpenCatalog(cfg.DBPath, cfg.BlobDir, m, cfg.SlowQuery())
	if err != nil {
		return err
	}
	defer catalog.Close()

	if cfg.ResendKey == "" && cfg.Production() {
		slog.Warn("email_disabled", "reason", "APPSTORE_RESEND_KEY is not set")
	}
	ident, err := bootstrap.OpenIdentity(bootstrap.IdentitySettings{
		Provider:    cfg.Identity,
		SupabaseURL: cfg.SupabaseURL,
		AnonKey:     cfg.SupabaseAnonKey,
		ServiceKey:  cfg.SupabaseServiceKey,
		JWTSecret:   cfg.SupabaseJWTSecret,
		Mailer:      bootstrap.Mailer(cfg.ResendKey, cfg.ResendFrom),
	}, catalog.SQL)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AdminEmail != "" {
		admin, err := orchestrators.ExecuteSeedAdmin(ctx, orchestrators.SeedAdminInput{
			Email:    cfg.AdminEmail,
			Password: cfg.AdminPassword,
			FullName: cfg.AdminName,
		}, orchestrators.SeedAdminDeps{Authenticator: ident.Authenticator, Accounts: ident.Accounts})
		if err != nil {
			return err
		}
		slog.Info("admin_ready", "email", admin.Email, "role", admin.Role)
	}

	csrfKey, err := cfg.CSRFSecret()
	if err != nil {
		return err
	}
	signingKey, err := cfg.SigningSecret()
	if err != nil {
		return err
	}

	srv, err := web.NewServer(web.Config{
		CSRFKey:        csrfKey,
		SecureCookies:  cfg.SecureCookies,
		TrustedOrigins: cfg.TrustedOrigins,
		PublicURL:      cfg.PublicURL,
		RatePerSecond:  cfg.RateLimit,
		SlowRequest:    cfg.SlowRequest(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
	}, web.Deps{
		Stores: web.Stores{
			Accounts:     ident.Accounts,
			Marketplaces: catalog.Marketplaces,
			Apps:         catalog.Apps,
			Ratings:      catalog.Ratings,
			Blobs:        catalog.Blobs,
		},
		Authenticator: ident.Authenticator,
		Resolver: auth.NewResolver(auth.ResolverDeps{
			Identities: ident.Authenticator,
			Accounts:   ident.Accounts,
			Observer:   m,
		}),
		Signer:  blob.NewURLSigner(signingKey, web.FilesPrefix, 0, nil),
		Metrics: m,
	})
	if err != nil {
		return err
	}

	jobs, err := scheduleSweeps(cfg.SweepSchedule, ident, srv, m)
	if err != nil {
		return err
	}
	jobs.Start()
	defer func() { <-jobs.Stop().Done() }()

	hs := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("server_starting", "version", version, "addr", cfg.Addr, "env", cfg.Env, "identity", cfg.Identity)
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	slog.Info("server_stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func setupLogging(cfg config.Server) {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.Production() {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}
