package adapters

import (
	"scholarly_library/internal/feature/auth/usecase"
	jwtmw "scholarly_library/internal/platform/jwt"
)

// jwtTokens adapts the platform JWT manager to usecase.TokenService.
type jwtTokens struct {
	m *jwtmw.Manager
}

var _ usecase.TokenService = (*jwtTokens)(nil)

// NewJWTTokens wraps m.
func NewJWTTokens(m *jwtmw.Manager) *jwtTokens {
	return &jwtTokens{m: m}
}

func (t *jwtTokens) Issue(userID uint) (string, error) {
	token, _, err := t.m.GenerateToken(userID)
	return token, err
}

func (t *jwtTokens) Verify(token string) (*usecase.TokenClaims, error) {
	c, err := t.m.ParseToken(token)
	if err != nil {
		return nil, err
	}
	return &usecase.TokenClaims{
		UserID:    c.UserID,
		TokenID:   c.TokenID,
		ExpiresAt: c.ExpiresAt,
	}, nil
}
