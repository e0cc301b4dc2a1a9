// Command shell is the terminal client for the app store. It opens the same
// database and blob directory as the server and drives the same pages.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"appstore/internal/adapters/blob"
	"appstore/internal/adapters/shell"
	"appstore/internal/bootstrap"
	"appstore/internal/config"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "shell:", err)
		os.Exit(1)
	}
}

func run() error {
	path := config.ShellPath()
	cfg, err := config.LoadShell(path)
	if err != nil {
		return err
	}

	catalog, err := bootstrap.OpenCatalog(cfg.Database.Path, cfg.Database.BlobDir, nil, 0)
	if err != nil {
		return err
	}
	defer catalog.Close()

	ident, err := bootstrap.OpenIdentity(bootstrap.IdentitySettings{
		Provider:    cfg.Identity.Provider,
		SupabaseURL: cfg.Identity.SupabaseURL,
		AnonKey:     cfg.Identity.AnonKey,
		JWTSecret:   cfg.Identity.JWTSecret,
	}, catalog.SQL)
	if err != nil {
		return err
	}

	// Download URLs never leave the process, so a per-run key is enough.
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return err
	}

	sh := shell.New(shell.Deps{
		Marketplaces:  catalog.Marketplaces,
		Apps:          catalog.Apps,
		Ratings:       catalog.Ratings,
		Blobs:         catalog.Blobs,
		Accounts:      ident.Accounts,
		Authenticator: ident.Authenticator,
		Signer:        blob.NewURLSigner(key, "", 0, nil),
		PublicURL:     cfg.Identity.PublicURL,
		DownloadDir:   cfg.Session.DownloadDir,
		LastEmail:     cfg.Session.LastEmail,
		Remember: func(email string) {
			cfg.Session.LastEmail = email
			if err := config.SaveShell(path, cfg); err != nil {
				slog.Warn("shell_config_save_failed", "path", path, "error", err)
			}
		},
	}, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	fmt.Println("App Store shell. Type \"help\" for commands.")
	return sh.Run(ctx, os.Stdin)
}
