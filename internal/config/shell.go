package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ShellEnvPrefix prefixes environment overrides of shell settings,
// e.g. APPSTORE_SHELL_DATABASE_PATH.
const ShellEnvPrefix = "APPSTORE_SHELL"

// Shell holds the terminal client's settings.
type Shell struct {
	Database DatabaseConfig
	Identity IdentityConfig
	Session  SessionConfig
}

// DatabaseConfig locates the catalog store.
type DatabaseConfig struct {
	Path    string
	BlobDir string `mapstructure:"blob_dir"`
}

// IdentityConfig selects and configures the identity backend.
type IdentityConfig struct {
	Provider    string
	SupabaseURL string `mapstructure:"supabase_url"`
	AnonKey     string `mapstructure:"anon_key"`
	JWTSecret   string `mapstructure:"jwt_secret"`
	PublicURL   string `mapstructure:"public_url"`
}

// SessionConfig is state the shell remembers between runs.
type SessionConfig struct {
	LastEmail   string `mapstructure:"last_email"`
	DownloadDir string `mapstructure:"download_dir"`
}

// ShellPath returns the config file path: APPSTORE_SHELL_CONFIG when set,
// otherwise ~/.config/appstore/shell.toml.
func ShellPath() string {
	if p := os.Getenv(ShellEnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "appstore", "shell.toml")
}

// LoadShell reads the shell config file, if present, and env overrides.
func LoadShell(path string) (Shell, error) {
	v := viper.New()

	v.SetDefault("database.path", "appstore.db")
	v.SetDefault("database.blob_dir", "data/blobs")
	v.SetDefault("identity.provider", IdentityLocal)
	v.SetDefault("identity.supabase_url", "")
	v.SetDefault("identity.anon_key", "")
	v.SetDefault("identity.jwt_secret", "")
	v.SetDefault("identity.public_url", "http://localhost:8080")
	v.SetDefault("session.last_email", "")
	v.SetDefault("session.download_dir", ".")

	v.SetConfigType("toml")
	v.SetConfigFile(path)

	v.SetEnvPrefix(ShellEnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing file leaves the defaults.
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Shell{}, fmt.Errorf("read %s: %w", path, err)
	}

	var c Shell
	if err := v.Unmarshal(&c); err != nil {
		return Shell{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, nil
}

// SaveShell writes c to path, creating the directory if needed.
func SaveShell(path string, c Shell) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", c.Database.Path)
	v.Set("database.blob_dir", c.Database.BlobDir)
	v.Set("identity.provider", c.Identity.Provider)
	v.Set("identity.supabase_url", c.Identity.SupabaseURL)
	v.Set("identity.anon_key", c.Identity.AnonKey)
	v.Set("identity.jwt_secret", c.Identity.JWTSecret)
	v.Set("identity.public_url", c.Identity.PublicURL)
	v.Set("session.last_email", c.Session.LastEmail)
	v.Set("session.download_dir", c.Session.DownloadDir)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
