// Package local is a self-hosted identity provider: bcrypt credentials in
// SQLite, in-memory session tokens, and emailed password reset links.
package local

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"appstore/internal/adapters/email"
	"appstore/internal/adapters/storage/credential"
	"appstore/internal/auth"
)

// DefaultResetTTL is how long a password reset link stays valid.
const DefaultResetTTL = time.Hour

// Config holds dependencies for the Provider.
type Config struct {
	Credentials credential.Store
	Sessions    *SessionStore
	Mailer      email.Sender
	ResetTTL    time.Duration
	BcryptCost  int
	Now         func() time.Time
}

// Provider implements auth.Authenticator against local credentials.
type Provider struct {
	creds    credential.Store
	sessions *SessionStore
	mailer   email.Sender
	resetTTL time.Duration
	cost     int
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

var _ auth.Authenticator = (*Provider)(nil)

// New creates a Provider.
// PRE: cfg.Credentials, cfg.Sessions and cfg.Mailer are non-nil
func New(cfg Config) *Provider {
	p := &Provider{
		creds:    cfg.Credentials,
		sessions: cfg.Sessions,
		mailer:   cfg.Mailer,
		resetTTL: cfg.ResetTTL,
		cost:     cfg.BcryptCost,
		now:      cfg.Now,
	}
	if p.resetTTL <= 0 {
		p.resetTTL = DefaultResetTTL
	}
	if p.cost == 0 {
		p.cost = bcrypt.DefaultCost
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// CurrentIdentity resolves the session token carried by ctx.
// Unknown or expired tokens mean nobody is signed in.
func (p *Provider) CurrentIdentity(ctx context.Context) (*auth.Identity, error) {
	tok, ok := auth.TokenFromContext(ctx)
	if !ok {
		return nil, nil
	}
	id, ok := p.sessions.Get(tok)
	if !ok {
		return nil, nil
	}
	c, err := p.creds.GetByID(ctx, id)
	if errors.Is(err, credential.ErrNotFound) {
		p.sessions.Delete(tok)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	return identityOf(c), nil
}

// SignIn checks the password and opens a session.
// POST: on success the returned token resolves via CurrentIdentity
func (p *Provider) SignIn(ctx context.Context, emailAddr, password string) (auth.Token, error) {
	c, err := p.creds.GetByEmail(ctx, normalizeEmail(emailAddr))
	if errors.Is(err, credential.ErrNotFound) {
		// Spend the same bcrypt time as a real check.
		_ = bcrypt.CompareHashAndPassword(p.dummy(), []byte(password))
		return auth.Token{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return auth.Token{}, fmt.Errorf("load credential: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) != nil {
		slog.Info("auth_event", "event", "sign_in_failed", "identity_id", c.IdentityID)
		return auth.Token{}, auth.ErrInvalidCredentials
	}

	tok, expires, err := p.sessions.Create(c.IdentityID)
	if err != nil {
		return auth.Token{}, fmt.Errorf("create session: %w", err)
	}
	slog.Info("auth_event", "event", "sign_in", "identity_id", c.IdentityID)
	return auth.Token{Value: tok, ExpiresAt: expires, Identity: *identityOf(c)}, nil
}

// SignUp creates a local identity. It does not sign the caller in.
func (p *Provider) SignUp(ctx context.Context, emailAddr, password, fullName string) (auth.Identity, error) {
	emailAddr = normalizeEmail(emailAddr)
	if !strings.Contains(emailAddr, "@") {
		return auth.Identity{}, auth.ErrInvalidEmail
	}
	if len(password) < auth.MinPasswordLength {
		return auth.Identity{}, auth.ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	now := p.now()
	c := credential.Credential{
		IdentityID:   uuid.NewString(),
		Email:        emailAddr,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.creds.Create(ctx, c); err != nil {
		if errors.Is(err, credential.ErrEmailTaken) {
			return auth.Identity{}, auth.ErrEmailTaken
		}
		return auth.Identity{}, fmt.Errorf("create credential: %w", err)
	}
	slog.Info("auth_event", "event", "sign_up", "identity_id", c.IdentityID)
	return *identityOf(c), nil
}

// SignOut ends the session. Unknown tokens are ignored.
func (p *Provider) SignOut(_ context.Context, token string) error {
	p.sessions.Delete(token)
	return nil
}

// RequestPasswordReset emails a single-use reset link to emailAddr.
// Unknown addresses succeed silently so the form does not reveal who has an
// account.
func (p *Provider) RequestPasswordReset(ctx context.Context, emailAddr, redirectURL string) error {
	c, err := p.creds.GetByEmail(ctx, normalizeEmail(emailAddr))
	if errors.Is(err, credential.ErrNotFound) {
		slog.Info("auth_event", "event", "password_reset_unknown_email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}

	token, err := generateToken()
	if err != nil {
		return err
	}
	err = p.creds.SaveResetToken(ctx, credential.ResetToken{
		TokenHash:  hashToken(token),
		IdentityID: c.IdentityID,
		ExpiresAt:  p.now().Add(p.resetTTL),
	})
	if err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}

	link, err := email.ResetLink(redirectURL, token)
	if err != nil {
		return err
	}
	msg, err := email.PasswordReset(c.Email, c.FullName, link, formatTTL(p.resetTTL))
	if err != nil {
		return fmt.Errorf("render reset email: %w", err)
	}
	if _, err := p.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	slog.Info("auth_event", "event", "password_reset_requested", "identity_id", c.IdentityID)
	return nil
}

// CompletePasswordReset sets a new password and spends resetToken together.
// The token stays usable when hashing or storing the password fails.
// POST: every existing session of the identity is revoked
func (p *Provider) CompletePasswordReset(ctx context.Context, resetToken, newPassword string) error {
	if len(newPassword) < auth.MinPasswordLength {
		return auth.ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), p.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	id, err := p.creds.ResetPassword(ctx, hashToken(resetToken), string(hash), p.now())
	if errors.Is(err, credential.ErrTokenInvalid) {
		return auth.ErrResetTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	revoked := p.sessions.DeleteForIdentity(id)
	slog.Info("auth_event", "event", "password_reset_completed", "identity_id", id, "sessions_revoked", revoked)
	return nil
}

// Sweep drops expired sessions and spent reset tokens.
func (p *Provider) Sweep(ctx context.Context) (sessions, tokens int, err error) {
	sessions = p.sessions.Sweep()
	tokens, err = p.creds.DeleteExpiredResetTokens(ctx, p.now())
	return sessions, tokens, err
}

func (p *Provider) dummy() []byte {
	p.dummyOnce.Do(func() {
		p.dummyHash, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), p.cost)
	})
	return p.dummyHash
}

func identityOf(c credential.Credential) *auth.Identity {
	return &auth.Identity{ID: c.IdentityID, Email: c.Email, FullName: c.FullName}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func formatTTL(d time.Duration) string {
	if d%time.Hour == 0 {
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	}
	return fmt.Sprintf("%d minutes", int(d/time.Minute))
}
