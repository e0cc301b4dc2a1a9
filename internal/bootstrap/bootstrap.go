// Package bootstrap opens the stores and identity backend both front-ends
// are built from.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"appstore/internal/adapters/blob"
	"appstore/internal/adapters/email"
	"appstore/internal/adapters/identity/gotrue"
	"appstore/internal/adapters/identity/local"
	"appstore/internal/adapters/storage"
	accountStore "appstore/internal/adapters/storage/account"
	appStore "appstore/internal/adapters/storage/app"
	"appstore/internal/adapters/storage/credential"
	marketplaceStore "appstore/internal/adapters/storage/marketplace"
	ratingStore "appstore/internal/adapters/storage/rating"
	"appstore/internal/adapters/supabase"
	"appstore/internal/auth"
	"appstore/internal/config"
)

// Catalog is the SQLite-backed catalog plus the blob store for app files.
type Catalog struct {
	DB           *sql.DB
	SQL          *storage.TimedDB
	Marketplaces *marketplaceStore.SQLiteStore
	Apps         *appStore.SQLiteStore
	Ratings      *ratingStore.SQLiteStore
	Blobs        *blob.FSStore
}

// OpenCatalog opens (and migrates) the database at dbPath and the blob
// directory. Queries slower than slow are logged; every query is reported to
// observer when it is non-nil.
func OpenCatalog(dbPath, blobDir string, observer storage.QueryObserver, slow time.Duration) (*Catalog, error) {
	db, err := storage.Open(dbPath)
	if err != nil {
		return nil, err
	}
	blobs, err := blob.NewFSStore(blobDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	timed := storage.NewTimedDB(db, observer, slow)
	return &Catalog{
		DB:           db,
		SQL:          timed,
		Marketplaces: marketplaceStore.NewSQLiteStore(timed),
		Apps:         appStore.NewSQLiteStore(timed),
		Ratings:      ratingStore.NewSQLiteStore(timed),
		Blobs:        blobs,
	}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.DB.Close()
}

// IdentitySettings selects the identity backend.
type IdentitySettings struct {
	Provider string // config.IdentityLocal or config.IdentitySupabase

	SupabaseURL string
	AnonKey     string
	ServiceKey  string // optional; lets the account store bypass row level security
	JWTSecret   string

	Mailer email.Sender // local provider only
}

// Identity is an identity backend and the account store that goes with it.
type Identity struct {
	Authenticator auth.Authenticator
	Accounts      accountStore.Store

	// Sweep drops expired sessions and reset tokens. Nil for backends that
	// expire them on their own.
	Sweep func(ctx context.Context) (int, error)
}

// OpenIdentity builds the configured identity backend. The local backend
// keeps credentials and accounts in db.
func OpenIdentity(s IdentitySettings, db storage.SQLDB) (Identity, error) {
	switch s.Provider {
	case config.IdentityLocal, "":
		if s.Mailer == nil {
			s.Mailer = email.NewNoopSender()
		}
		p := local.New(local.Config{
			Credentials: credential.NewSQLiteStore(db),
			Sessions:    local.NewSessionStore(0, nil),
			Mailer:      s.Mailer,
		})
		return Identity{
			Authenticator: p,
			Accounts:      accountStore.NewSQLiteStore(db),
			Sweep: func(ctx context.Context) (int, error) {
				sessions, tokens, err := p.Sweep(ctx)
				return sessions + tokens, err
			},
		}, nil

	case config.IdentitySupabase:
		client, err := supabase.New(supabase.Config{URL: s.SupabaseURL, APIKey: s.AnonKey})
		if err != nil {
			return Identity{}, err
		}
		accounts := accountStore.NewPostgRESTStore(client)
		if s.ServiceKey != "" {
			serviceClient, err := supabase.New(supabase.Config{URL: s.SupabaseURL, APIKey: s.ServiceKey})
			if err != nil {
				return Identity{}, err
			}
			accounts = accountStore.NewPostgRESTStore(serviceClient, accountStore.WithServiceRole())
		}
		return Identity{
			Authenticator: gotrue.New(gotrue.Config{Client: client, JWTSecret: s.JWTSecret}),
			Accounts:      accounts,
		}, nil

	default:
		return Identity{}, config.ErrUnknownIdentity
	}
}

// Mailer returns the Resend sender when apiKey is set, otherwise a sender that
// only logs.
func Mailer(apiKey, from string) email.Sender {
	if apiKey == "" {
		return email.NewNoopSender()
	}
	return email.NewResendSender(apiKey, from)
}
