// Package config loads server settings from the environment and shell
// settings from a TOML file.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Identity backends.
const (
	IdentityLocal    = "local"
	IdentitySupabase = "supabase"
)

// EnvProduction is the APPSTORE_ENV value that enables production defaults.
const EnvProduction = "production"

// Configuration errors
var (
	ErrUnknownIdentity  = errors.New("APPSTORE_IDENTITY must be local or supabase")
	ErrSupabaseSettings = errors.New("supabase identity needs SUPABASE_URL and SUPABASE_ANON_KEY")
	ErrMissingSecret    = errors.New("APPSTORE_CSRF_KEY and APPSTORE_SIGNING_KEY are required in production")
	ErrBadKey           = errors.New("key must be 64 hex characters")
)

// Server holds the server's environment configuration.
type Server struct {
	Addr      string `env:"APPSTORE_ADDR"       envDefault:":8080"`
	Env       string `env:"APPSTORE_ENV"        envDefault:"development"`
	LogLevel  string `env:"APPSTORE_LOG_LEVEL"  envDefault:"info"`
	PublicURL string `env:"APPSTORE_PUBLIC_URL" envDefault:"http://localhost:8080"`

	DBPath  string `env:"APPSTORE_DB_PATH"  envDefault:"appstore.db"`
	BlobDir string `env:"APPSTORE_BLOB_DIR" envDefault:"data/blobs"`

	// Keys are hex encoded 32-byte secrets. Outside production a missing key
	// is replaced with a random one at startup.
	CSRFKey    string `env:"APPSTORE_CSRF_KEY"`
	SigningKey string `env:"APPSTORE_SIGNING_KEY"`

	SecureCookies  bool     `env:"APPSTORE_SECURE_COOKIES"`
	TrustedOrigins []string `env:"APPSTORE_TRUSTED_ORIGINS" envSeparator:","`

	Identity           string `env:"APPSTORE_IDENTITY" envDefault:"local"`
	SupabaseURL        string `env:"SUPABASE_URL"`
	SupabaseAnonKey    string `env:"SUPABASE_ANON_KEY"`
	SupabaseServiceKey string `env:"SUPABASE_SERVICE_KEY"`
	SupabaseJWTSecret  string `env:"SUPABASE_JWT_SECRET"`

	AdminEmail    string `env:"APPSTORE_ADMIN_EMAIL"`
	AdminPassword string `env:"APPSTORE_ADMIN_PASSWORD"`
	AdminName     string `env:"APPSTORE_ADMIN_NAME" envDefault:"Administrator"`

	ResendKey  string `env:"APPSTORE_RESEND_KEY"`
	ResendFrom string `env:"APPSTORE_RESEND_FROM" envDefault:"App Store <noreply@appstore.local>"`

	RateLimit     float64 `env:"APPSTORE_RATE_LIMIT"       envDefault:"10"`
	SlowQueryMS   int     `env:"APPSTORE_SLOW_QUERY_MS"    envDefault:"50"`
	SlowRequestMS int     `env:"APPSTORE_SLOW_REQUEST_MS"  envDefault:"200"`
	MaxUploadMB   int64   `env:"APPSTORE_MAX_UPLOAD_MB"    envDefault:"512"`
	SweepSchedule string  `env:"APPSTORE_SWEEP_SCHEDULE"   envDefault:"@every 10m"`
}

// LoadServer parses the environment and validates the result.
func LoadServer() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks settings that depend on each other.
func (c Server) Validate() error {
	switch c.Identity {
	case IdentityLocal:
	case IdentitySupabase:
		if c.SupabaseURL == "" || c.SupabaseAnonKey == "" {
			return ErrSupabaseSettings
		}
	default:
		return ErrUnknownIdentity
	}
	if c.Production() && (c.CSRFKey == "" || c.SigningKey == "") {
		return ErrMissingSecret
	}
	return nil
}

// Production reports whether APPSTORE_ENV is production.
func (c Server) Production() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// Level maps LogLevel to a slog level; unknown values are info.
func (c Server) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// SlowQuery is the slow query log threshold.
func (c Server) SlowQuery() time.Duration {
	return time.Duration(c.SlowQueryMS) * time.Millisecond
}

// SlowRequest is the slow request log threshold.
func (c Server) SlowRequest() time.Duration {
	return time.Duration(c.SlowRequestMS) * time.Millisecond
}

// MaxUploadBytes is the upload cap in bytes.
func (c Server) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// CSRFSecret decodes CSRFKey, or generates one when it is empty.
func (c Server) CSRFSecret() ([]byte, error) {
	return decodeKey(c.CSRFKey)
}

// SigningSecret decodes SigningKey, or generates one when it is empty.
func (c Server) SigningSecret() ([]byte, error) {
	return decodeKey(c.SigningKey)
}

func decodeKey(s string) ([]byte, error) {
	if s == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate key: %w", err)
		}
		return key, nil
	}
	key, err := hex.DecodeString(s)
	if err != nil || len(key) != 32 {
		return nil, ErrBadKey
	}
	return key, nil
}
