package middleware

import (
	"net/http"
	"time"

	"appstore/internal/auth"
)

// SessionCookieName names the cookie that carries the identity provider's
// session token.
const SessionCookieName = "appstore_session"

// Session returns middleware that copies the session cookie into the request
// context for the identity provider and gives the request its own session
// cache, so every guard on one request shares a single resolution.
// It does NOT block unauthenticated requests; guards do that.
func Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := auth.WithSessionCache(r.Context())
		if tok := SessionToken(r); tok != "" {
			ctx = auth.WithToken(ctx, tok)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionToken returns the session cookie's value, or "" when absent.
func SessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// CookieConfig controls session cookie attributes.
type CookieConfig struct {
	Secure bool
	Now    func() time.Time
}

// SetSessionCookie stores token until expires.
// PRE: token is non-empty
func (c CookieConfig) SetSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	maxAge := 0
	if !expires.IsZero() {
		now := time.Now
		if c.Now != nil {
			now = c.Now
		}
		maxAge = max(int(expires.Sub(now()).Seconds()), 1)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   maxAge,
	})
}

// ClearSessionCookie removes the session cookie.
func (c CookieConfig) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}
