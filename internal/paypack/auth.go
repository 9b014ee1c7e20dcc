package paypack

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// refreshBuffer is how long before expiry a cached token stops being handed out.
const refreshBuffer = 60 * time.Second

// exchangeTimeout bounds a shared refresh or authorize round trip.
const exchangeTimeout = 30 * time.Second

// ErrNoRefreshToken is returned by Refresh when no refresh token is cached or supplied.
var ErrNoRefreshToken = errors.New("no refresh token available")

// TokenSource performs the raw credential exchanges against the provider.
type TokenSource interface {
	Authorize(ctx context.Context, clientID, clientSecret string) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refresh string) (*AuthResponse, error)
}

// Credentials is the cached token triple.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// TokenManager owns the credential cache and hands out valid access tokens.
// Callers that observe an expired cache at the same time share one exchange.
type TokenManager struct {
	source       TokenSource
	clientID     string
	clientSecret string
	now          func() time.Time
	logger       *slog.Logger

	mu    sync.RWMutex
	creds *Credentials

	group singleflight.Group
}

// TokenOption customizes a TokenManager.
type TokenOption func(*TokenManager)

// WithTokenClock overrides the time source used for expiry checks.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTokenLogger sets the logger used to report refresh fallbacks.
func WithTokenLogger(l *slog.Logger) TokenOption {
	return func(m *TokenManager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewTokenManager creates an empty, unauthenticated credential cache.
func NewTokenManager(source TokenSource, clientID, clientSecret string, opts ...TokenOption) *TokenManager {
	m := &TokenManager{
		source:       source,
		clientID:     clientID,
		clientSecret: clientSecret,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Authenticate exchanges the configured client credentials for a new token
// triple and replaces the cache. Provider errors are returned as-is.
func (m *TokenManager) Authenticate(ctx context.Context) (*Credentials, error) {
	auth, err := m.source.Authorize(ctx, m.clientID, m.clientSecret)
	if err != nil {
		return nil, err
	}
	return m.store(auth), nil
}

// Refresh exchanges a refresh token for a new triple. An empty token means the
// cached one.
func (m *TokenManager) Refresh(ctx context.Context, token string) (*Credentials, error) {
	if token == "" {
		m.mu.RLock()
		if m.creds != nil {
			token = m.creds.RefreshToken
		}
		m.mu.RUnlock()
	}
	if token == "" {
		return nil, ErrNoRefreshToken
	}

	auth, err := m.source.RefreshToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return m.store(auth), nil
}

// ValidAccessToken returns a token valid for at least another minute, refreshing
// or re-authenticating as needed. At most one exchange runs at a time; it is
// detached from any single caller, so a caller that gives up only stops its
// own wait.
func (m *TokenManager) ValidAccessToken(ctx context.Context) (string, error) {
	if token, ok := m.cachedToken(); ok {
		return token, nil
	}

	ch := m.group.DoChan("access", func() (any, error) {
		// Another caller may have finished an exchange while we waited.
		if token, ok := m.cachedToken(); ok {
			return token, nil
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exchangeTimeout)
		defer cancel()

		if m.hasRefreshToken() {
			creds, err := m.Refresh(ctx, "")
			if err == nil {
				return creds.AccessToken, nil
			}
			m.logger.Warn("paypack token refresh failed, re-authenticating", "error", err)
		}

		creds, err := m.Authenticate(ctx)
		if err != nil {
			return "", err
		}
		return creds.AccessToken, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// IsAuthenticated reports whether a cached token exists and has not yet expired.
func (m *TokenManager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds != nil && m.creds.ExpiresAt.After(m.now())
}

// ClearTokens drops the cache; the next ValidAccessToken authenticates from scratch.
func (m *TokenManager) ClearTokens() {
	m.mu.Lock()
	m.creds = nil
	m.mu.Unlock()
}

// TokenInfo returns a copy of the cached credentials, or nil.
func (m *TokenManager) TokenInfo() *Credentials {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return nil
	}
	c := *m.creds
	return &c
}

func (m *TokenManager) cachedToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds != nil && m.creds.ExpiresAt.After(m.now().Add(refreshBuffer)) {
		return m.creds.AccessToken, true
	}
	return "", false
}

func (m *TokenManager) hasRefreshToken() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creds != nil && m.creds.RefreshToken != ""
}

func (m *TokenManager) store(auth *AuthResponse) *Credentials {
	creds := &Credentials{
		AccessToken:  auth.Access,
		RefreshToken: auth.Refresh,
		ExpiresAt:    auth.Expires.Time,
	}

	m.mu.Lock()
	m.creds = creds
	m.mu.Unlock()

	c := *creds
	return &c
}
