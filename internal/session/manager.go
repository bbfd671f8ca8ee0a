// Package session issues, resolves and revokes login sessions. A session is an
// HS256-signed JWT whose id is also held in a Registry, so logging out takes
// effect before the token expires.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bank_system/internal/domain"

	"github.com/golang-jwt/jwt/v5" // JWT library
	"github.com/google/uuid"       // Session ids
)

// Claims carried by a session token
type Claims struct {
	UserID               uint `json:"user_id"` // Custom claim for user ID
	jwt.RegisteredClaims      // Standard JWT claims, ID holds the session id
}

// Manager signs session tokens and keeps the registry in sync with them
type Manager struct {
	secret   []byte
	ttl      time.Duration
	registry Registry
	now      func() time.Time
}

// Option customizes a Manager
type Option func(*Manager)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds a Manager signing with secret. Sessions last ttl.
func NewManager(secret string, ttl time.Duration, registry Registry, opts ...Option) *Manager {
	m := &Manager{secret: []byte(secret), ttl: ttl, registry: registry, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL is the lifetime of newly issued sessions
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue starts a session for userID and returns its signed token
func (m *Manager) Issue(ctx context.Context, userID uint) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	if err := m.registry.Save(ctx, claims.ID, userID, m.ttl); err != nil {
		return "", time.Time{}, fmt.Errorf("register session: %w", err)
	}
	return token, expiresAt, nil
}

// Resolve validates a token and returns its claims. Any token that is
// malformed, badly signed, expired or revoked yields domain.ErrSessionInvalid.
func (m *Manager) Resolve(ctx context.Context, token string) (*Claims, error) {
	claims, err := m.parse(token,
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, domain.ErrSessionInvalid
	}
	userID, ok, err := m.registry.Lookup(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if !ok || userID != claims.UserID {
		return nil, domain.ErrSessionInvalid
	}
	return claims, nil
}

// Revoke ends the session behind token. Tokens that do not parse, or whose
// session is already gone, are ignored.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	claims, err := m.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil
	}
	return m.registry.Delete(ctx, claims.ID)
}

func (m *Manager) parse(token string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := jwt.NewParser(opts...).ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return m.secret, nil // Return the secret key for validation
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, errors.New("malformed session claims")
	}
	return claims, nil
}
