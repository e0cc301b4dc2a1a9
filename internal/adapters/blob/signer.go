package blob

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultURLTTL is the lifetime of a signed download URL.
const DefaultURLTTL = 60 * time.Second

const downloadAudience = "download"

// ErrBadSignature is returned for tokens that are expired, forged or issued
// for another object.
var ErrBadSignature = errors.New("download link is invalid or has expired")

// URLSigner issues and checks signed download URLs of the form
// <base>/<key>?token=<jwt>.
type URLSigner struct {
	key  []byte
	base string
	ttl  time.Duration
	now  func() time.Time
}

// NewURLSigner creates a URLSigner. A zero ttl takes DefaultURLTTL.
// PRE: len(key) > 0; base is a path such as "/files"
func NewURLSigner(key []byte, base string, ttl time.Duration, now func() time.Time) *URLSigner {
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}
	if now == nil {
		now = time.Now
	}
	return &URLSigner{key: key, base: strings.TrimSuffix(base, "/"), ttl: ttl, now: now}
}

// downloadClaims are the claims of a download token. Name is the file name
// the object is offered under.
type downloadClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Sign returns a URL that grants access to objectKey until the returned time.
// fileName, which may be empty, is signed into the token.
func (s *URLSigner) Sign(objectKey, fileName string) (string, time.Time, error) {
	clean, err := CleanKey(objectKey)
	if err != nil {
		return "", time.Time{}, err
	}
	now := s.now()
	exp := now.Add(s.ttl)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, downloadClaims{
		Name: fileName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clean,
			Audience:  jwt.ClaimStrings{downloadAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return s.base + "/" + clean + "?token=" + url.QueryEscape(tok), exp, nil
}

// Verify checks that token grants access to objectKey now and returns the
// file name signed with it.
func (s *URLSigner) Verify(objectKey, token string) (string, error) {
	clean, err := CleanKey(objectKey)
	if err != nil {
		return "", ErrBadSignature
	}
	var claims downloadClaims
	_, err = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(downloadAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || claims.Subject != clean {
		return "", ErrBadSignature
	}
	return claims.Name, nil
}

// Base returns the path prefix signed URLs are issued under.
func (s *URLSigner) Base() string { return s.base }
