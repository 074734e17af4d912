package gateway

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TokenStore keeps the shopper's bearer JWT for the session. A 401 from any
// endpoint clears it, and an expired token is never attached in the first
// place.
type TokenStore struct {
	mu    sync.RWMutex
	token string
	now   func() time.Time
}

// NewTokenStore constructs an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{now: time.Now}
}

// Set replaces the stored token.
func (s *TokenStore) Set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = strings.TrimSpace(token)
}

// Clear discards the stored token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// Token returns the stored token when it is present and not expired. Tokens
// that do not parse as JWTs are passed through untouched; expiry screening is
// best-effort, the backend remains the authority.
func (s *TokenStore) Token() (string, bool) {
	s.mu.RLock()
	token := s.token
	now := s.now
	s.mu.RUnlock()

	if token == "" {
		return "", false
	}
	if expired(token, now()) {
		s.Clear()
		return "", false
	}
	return token, true
}

func expired(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now)
}
