package local

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// DefaultSessionTTL is how long a sign-in stays valid.
const DefaultSessionTTL = 24 * time.Hour

type session struct {
	identityID string
	expiresAt  time.Time
}

// SessionStore is an in-memory token → identity map.
// Expired entries are invisible to Get and removed by Sweep.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a SessionStore. A zero ttl takes DefaultSessionTTL;
// a nil now takes time.Now.
func NewSessionStore(ttl time.Duration, now func() time.Time) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &SessionStore{
		sessions: make(map[string]session),
		ttl:      ttl,
		now:      now,
	}
}

// Create stores a new session and returns its token and expiry.
// PRE: identityID is non-empty
// POST: Get(token) returns identityID until the expiry passes
func (ss *SessionStore) Create(identityID string) (string, time.Time, error) {
	token, err := generateToken()
	if err != nil {
		return "", time.Time{}, err
	}
	expires := ss.now().Add(ss.ttl)
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[token] = session{identityID: identityID, expiresAt: expires}
	return token, expires, nil
}

// Get returns the identity behind token when the session is live.
func (ss *SessionStore) Get(token string) (string, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	s, ok := ss.sessions[token]
	if !ok || !ss.now().Before(s.expiresAt) {
		return "", false
	}
	return s.identityID, true
}

// Delete removes a session by token.
func (ss *SessionStore) Delete(token string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, token)
}

// DeleteForIdentity revokes every session of identityID and returns how many
// were removed.
func (ss *SessionStore) DeleteForIdentity(identityID string) int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	n := 0
	for tok, s := range ss.sessions {
		if s.identityID == identityID {
			delete(ss.sessions, tok)
			n++
		}
	}
	return n
}

// Sweep drops expired sessions and returns how many were removed.
func (ss *SessionStore) Sweep() int {
	now := ss.now()
	ss.mu.Lock()
	defer ss.mu.Unlock()
	n := 0
	for tok, s := range ss.sessions {
		if !now.Before(s.expiresAt) {
			delete(ss.sessions, tok)
			n++
		}
	}
	return n
}

// Len returns the number of stored sessions, live or not.
func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// generateToken returns 32 random bytes, hex encoded.
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
