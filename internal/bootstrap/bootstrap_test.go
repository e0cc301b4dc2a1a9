package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"appstore/internal/adapters/email"
	"appstore/internal/adapters/storage"
	"appstore/internal/config"
)

func TestOpenCatalog_MigratesAndServes(t *testing.T) {
	dir := t.TempDir()
	c, err := OpenCatalog(filepath.Join(dir, "appstore.db"), filepath.Join(dir, "blobs"), nil, 0)
	if err != nil {
		t.Fatalf("OpenCatalog: %v", err)
	}
	defer c.Close()

	n, err := c.Apps.Count(context.Background())
	if err != nil || n != 0 {
		t.Errorf("Count = %d, %v", n, err)
	}
	size, err := c.Blobs.Put(context.Background(), "apps/a/1.zip", strings.NewReader("zip"))
	if err != nil || size != 3 {
		t.Errorf("Put = %d, %v", size, err)
	}
}

func TestOpenIdentity_LocalSignUpAndSweep(t *testing.T) {
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mailer := email.NewNoopSender()
	id, err := OpenIdentity(IdentitySettings{Provider: config.IdentityLocal, Mailer: mailer}, db)
	if err != nil {
		t.Fatalf("OpenIdentity: %v", err)
	}
	ctx := context.Background()
	if _, err := id.Authenticator.SignUp(ctx, "jo@corp.example", "correct horse", "Jo"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	if _, err := id.Authenticator.SignIn(ctx, "jo@corp.example", "correct horse"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if id.Sweep == nil {
		t.Fatal("local identity should sweep")
	}
	if n, err := id.Sweep(ctx); err != nil || n != 0 {
		t.Errorf("Sweep = %d, %v", n, err)
	}
}

func TestOpenIdentity_SupabaseNeedsSettings(t *testing.T) {
	_, err := OpenIdentity(IdentitySettings{Provider: config.IdentitySupabase}, nil)
	if err == nil {
		t.Fatal("expected an error without a project url")
	}
	id, err := OpenIdentity(IdentitySettings{
		Provider:    config.IdentitySupabase,
		SupabaseURL: "https://project.supabase.co",
		AnonKey:     "anon",
		ServiceKey:  "service",
	}, nil)
	if err != nil {
		t.Fatalf("OpenIdentity: %v", err)
	}
	if id.Sweep != nil {
		t.Error("supabase sessions expire on the provider")
	}
}

func TestOpenIdentity_Unknown(t *testing.T) {
	if _, err := OpenIdentity(IdentitySettings{Provider: "ldap"}, nil); !errors.Is(err, config.ErrUnknownIdentity) {
		t.Errorf("err = %v, want ErrUnknownIdentity", err)
	}
}

func TestMailer(t *testing.T) {
	if _, ok := Mailer("", "x@y").(*email.NoopSender); !ok {
		t.Error("no api key should log only")
	}
	if _, ok := Mailer("re_123", "x@y").(*email.ResendSender); !ok {
		t.Error("api key should select resend")
	}
}
