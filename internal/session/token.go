// Package session issues and verifies the signed tokens that let a browser
// poll a payment it started without the server holding any state. The token
// carries the provider transaction id and the moment polling began, so the
// elapsed time is derived from the token itself.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTTL bounds how long a poll session can be resumed.
const DefaultTTL = 15 * time.Minute

const issuerName = "paypack-portal"

var (
	ErrNoSecret     = errors.New("session: signing secret is required")
	ErrInvalidToken = errors.New("session: invalid token")
	ErrExpired      = errors.New("session: token expired")
)

// Claims are the poll-session token claims.
type Claims struct {
	jwt.RegisteredClaims

	// Provider transaction id to poll.
	TransactionID string `json:"txn"`

	// Local reference, e.g. CASHIN-1760000000000-k3j2h1g0f.
	Reference string `json:"ref,omitempty"`

	// Flow is cashin, cashout or payment.
	Flow string `json:"flow,omitempty"`
}

// StartedAt is when polling began.
func (c *Claims) StartedAt() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// Manager signs and verifies HS256 session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager builds a Manager. The secret must not be empty.
func NewManager(secret string, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	m := &Manager{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue starts a poll session for the given transaction.
func (m *Manager) Issue(transactionID, reference, flow string) (string, *Claims, error) {
	if strings.TrimSpace(transactionID) == "" {
		return "", nil, fmt.Errorf("%w: transaction id is required", ErrInvalidToken)
	}

	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			Subject:   transactionID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
		TransactionID: transactionID,
		Reference:     reference,
		Flow:          flow,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies the signature and time claims of a session token.
func (m *Manager) Parse(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithTimeFunc(m.now),
		jwt.WithIssuedAt(),
	)

	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.TransactionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Elapsed reports how long the session has been polling at the manager's now.
func (m *Manager) Elapsed(c *Claims) time.Duration {
	started := c.StartedAt()
	if started.IsZero() {
		return 0
	}
	if d := m.now().Sub(started); d > 0 {
		return d
	}
	return 0
}
