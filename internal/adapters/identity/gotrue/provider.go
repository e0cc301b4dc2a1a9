// Package gotrue implements the identity provider on Supabase Auth (GoTrue).
// Access tokens are verified locally when the project's JWT secret is known,
// and against /auth/v1/user otherwise.
package gotrue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"appstore/internal/adapters/supabase"
	"appstore/internal/auth"
)

// Claims are the parts of a Supabase access token the provider reads.
type Claims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// Config holds dependencies for the Provider.
type Config struct {
	Client    *supabase.Client
	JWTSecret string
	Now       func() time.Time
}

// Provider implements auth.Authenticator against GoTrue.
type Provider struct {
	client *supabase.Client
	secret []byte
	now    func() time.Time
}

var _ auth.Authenticator = (*Provider)(nil)

// New creates a Provider.
// PRE: cfg.Client is non-nil
func New(cfg Config) *Provider {
	p := &Provider{client: cfg.Client, now: cfg.Now}
	if cfg.JWTSecret != "" {
		p.secret = []byte(cfg.JWTSecret)
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// CurrentIdentity resolves the access token carried by ctx. Expired, malformed
// and rejected tokens mean nobody is signed in; transport failures are errors.
func (p *Provider) CurrentIdentity(ctx context.Context) (*auth.Identity, error) {
	tok, ok := auth.TokenFromContext(ctx)
	if !ok {
		return nil, nil
	}
	if p.secret != nil {
		return p.verifyLocal(tok), nil
	}

	resp, err := p.client.Do(ctx, supabase.Request{
		Method: http.MethodGet,
		Path:   "/auth/v1/user",
		Bearer: tok,
	})
	if supabase.IsStatus(err, http.StatusUnauthorized) || supabase.IsStatus(err, http.StatusForbidden) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("gotrue user: %w", err)
	}
	ident := identityFromUser(resp.JSON())
	return &ident, nil
}

func (p *Provider) verifyLocal(tok string) *auth.Identity {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || claims.Subject == "" {
		slog.Debug("access_token_rejected", "error", err)
		return nil
	}
	name, _ := claims.UserMetadata["full_name"].(string)
	return &auth.Identity{ID: claims.Subject, Email: claims.Email, FullName: name}
}

// SignIn exchanges email and password for an access token.
func (p *Provider) SignIn(ctx context.Context, email, password string) (auth.Token, error) {
	resp, err := p.client.Do(ctx, supabase.Request{
		Method: http.MethodPost,
		Path:   "/auth/v1/token",
		Query:  url.Values{"grant_type": {"password"}},
		Body:   map[string]string{"email": strings.TrimSpace(email), "password": password},
	})
	if supabase.IsStatus(err, http.StatusBadRequest) || supabase.IsStatus(err, http.StatusUnauthorized) {
		return auth.Token{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return auth.Token{}, fmt.Errorf("gotrue sign in: %w", err)
	}

	body := resp.JSON()
	tok := auth.Token{
		Value:    body.Get("access_token").String(),
		Identity: identityFromUser(body.Get("user")),
	}
	if exp := body.Get("expires_at").Int(); exp > 0 {
		tok.ExpiresAt = time.Unix(exp, 0)
	} else {
		tok.ExpiresAt = p.now().Add(time.Duration(body.Get("expires_in").Int()) * time.Second)
	}
	if tok.Value == "" {
		return auth.Token{}, errors.New("gotrue sign in: no access token in response")
	}
	slog.Info("auth_event", "event", "sign_in", "identity_id", tok.Identity.ID)
	return tok, nil
}

// SignUp registers a new identity, passing the full name as user metadata.
// Projects that require email confirmation return the identity unconfirmed.
func (p *Provider) SignUp(ctx context.Context, email, password, fullName string) (auth.Identity, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return auth.Identity{}, auth.ErrInvalidEmail
	}
	if len(password) < auth.MinPasswordLength {
		return auth.Identity{}, auth.ErrWeakPassword
	}
	resp, err := p.client.Do(ctx, supabase.Request{
		Method: http.MethodPost,
		Path:   "/auth/v1/signup",
		Body: map[string]any{
			"email":    email,
			"password": password,
			"data":     map[string]string{"full_name": strings.TrimSpace(fullName)},
		},
	})
	if err != nil {
		var apiErr *supabase.APIError
		if errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "already registered") {
			return auth.Identity{}, auth.ErrEmailTaken
		}
		return auth.Identity{}, fmt.Errorf("gotrue sign up: %w", err)
	}

	// With autoconfirm on, the user is nested next to a session.
	body := resp.JSON()
	if u := body.Get("user"); u.Exists() {
		body = u
	}
	ident := identityFromUser(body)
	slog.Info("auth_event", "event", "sign_up", "identity_id", ident.ID)
	return ident, nil
}

// SignOut revokes the session behind token. Already invalid tokens are ignored.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	_, err := p.client.Do(ctx, supabase.Request{
		Method: http.MethodPost,
		Path:   "/auth/v1/logout",
		Bearer: token,
	})
	if err != nil && !supabase.IsStatus(err, http.StatusUnauthorized) && !supabase.IsStatus(err, http.StatusForbidden) {
		return fmt.Errorf("gotrue sign out: %w", err)
	}
	return nil
}

// RequestPasswordReset asks GoTrue to email a recovery link that returns the
// user to redirectURL.
func (p *Provider) RequestPasswordReset(ctx context.Context, email, redirectURL string) error {
	_, err := p.client.Do(ctx, supabase.Request{
		Method: http.MethodPost,
		Path:   "/auth/v1/recover",
		Query:  url.Values{"redirect_to": {redirectURL}},
		Body:   map[string]string{"email": strings.TrimSpace(email)},
	})
	if err != nil {
		return fmt.Errorf("gotrue recover: %w", err)
	}
	slog.Info("auth_event", "event", "password_reset_requested")
	return nil
}

// CompletePasswordReset sets a new password using the recovery access token
// delivered by the reset link.
func (p *Provider) CompletePasswordReset(ctx context.Context, resetToken, newPassword string) error {
	if len(newPassword) < auth.MinPasswordLength {
		return auth.ErrWeakPassword
	}
	_, err := p.client.Do(ctx, supabase.Request{
		Method: http.MethodPut,
		Path:   "/auth/v1/user",
		Body:   map[string]string{"password": newPassword},
		Bearer: resetToken,
	})
	if supabase.IsStatus(err, http.StatusUnauthorized) || supabase.IsStatus(err, http.StatusForbidden) {
		return auth.ErrResetTokenInvalid
	}
	if err != nil {
		return fmt.Errorf("gotrue update user: %w", err)
	}
	slog.Info("auth_event", "event", "password_reset_completed")
	return nil
}

func identityFromUser(u gjson.Result) auth.Identity {
	return auth.Identity{
		ID:       u.Get("id").String(),
		Email:    u.Get("email").String(),
		FullName: u.Get("user_metadata.full_name").String(),
	}
}
