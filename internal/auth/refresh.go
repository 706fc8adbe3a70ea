package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// expiryBuffer refreshes tokens this long before they expire
const expiryBuffer = 60 * time.Second

// TokenStore persists refreshed tokens
type TokenStore interface {
	UpdateTokens(accessToken, refreshToken string, expiresAt time.Time) error
}

// TokenSource refreshes tokens as needed and persists every new token
type TokenSource struct {
	mu     sync.Mutex
	config *oauth2.Config
	token  *oauth2.Token
	store  TokenStore
	now    func() time.Time
}

// NewTokenSource creates a TokenSource starting from token
func NewTokenSource(cfg *oauth2.Config, token *oauth2.Token, store TokenStore) *TokenSource {
	return &TokenSource{
		config: cfg,
		token:  token,
		store:  store,
		now:    time.Now,
	}
}

// Token returns a valid token, refreshing and persisting it if necessary
func (ts *TokenSource) Token() (*oauth2.Token, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.expiringLocked() {
		return ts.token, nil
	}

	// Force a refresh: the oauth2 source only refreshes expired tokens
	stale := *ts.token
	stale.Expiry = ts.now().Add(-time.Second)
	fresh, err := ts.config.TokenSource(context.Background(), &stale).Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	if ts.store != nil {
		if err := ts.store.UpdateTokens(fresh.AccessToken, fresh.RefreshToken, fresh.Expiry); err != nil {
			return nil, fmt.Errorf("persisting token: %w", err)
		}
	}

	ts.token = fresh
	return fresh, nil
}

// IsExpired reports whether the current token is expired or about to be
func (ts *TokenSource) IsExpired() bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.expiringLocked()
}

func (ts *TokenSource) expiringLocked() bool {
	return ts.token.Expiry.Sub(ts.now()) <= expiryBuffer
}
