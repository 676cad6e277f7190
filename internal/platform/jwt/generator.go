// Package jwtmw issues and verifies HS256 session tokens and provides the gin
// middleware that guards authenticated routes.
package jwtmw

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the verified content of a session token.
type Claims struct {
	UserID    uint
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager signs and parses session tokens with a shared HMAC secret.
type Manager struct {
	secret     []byte
	expiration time.Duration
	now        func() time.Time
}

// NewManager creates a Manager. expiration is the lifetime of issued tokens.
func NewManager(secret string, expiration time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		expiration: expiration,
		now:        time.Now,
	}
}

// GenerateToken creates a signed token whose subject is userID and whose jti
// is a fresh UUID.
func (m *Manager) GenerateToken(userID uint) (string, *Claims, error) {
	if len(m.secret) == 0 {
		return "", nil, errors.New("jwt secret is not configured")
	}

	now := m.now().Truncate(time.Second)
	c := &Claims{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		IssuedAt:  now,
		ExpiresAt: now.Add(m.expiration),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ID:        c.TokenID,
		IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, c, nil
}

// ParseToken verifies the signature (HS256 only), expiry and required claims.
// Every failure wraps ErrInvalidToken.
func (m *Manager) ParseToken(tokenStr string) (*Claims, error) {
	if len(m.secret) == 0 {
		return nil, fmt.Errorf("%w: secret not configured", ErrInvalidToken)
	}

	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenStr, &rc, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := strconv.ParseUint(rc.Subject, 10, 64)
	if err != nil || sub == 0 {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	if rc.ID == "" {
		return nil, fmt.Errorf("%w: missing jti", ErrInvalidToken)
	}

	c := &Claims{
		UserID:    uint(sub),
		TokenID:   rc.ID,
		ExpiresAt: rc.ExpiresAt.Time,
	}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	return c, nil
}
