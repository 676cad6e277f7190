package jwtmw

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"scholarly_library/internal/api"
)

// Context keys set by AuthRequired.
const (
	ContextUserID = "userID"
	ContextRole   = "role"
	ContextToken  = "token"
)

// RoleAdmin is the role allowed through admin-only routes.
const RoleAdmin = "admin"

// Principal is the caller resolved from a bearer token.
type Principal struct {
	UserID uint
	Role   string
}

// Authenticator resolves a raw bearer token to a Principal.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Principal, error)
}

// AuthenticatorFunc adapts a function to the Authenticator interface.
type AuthenticatorFunc func(ctx context.Context, token string) (*Principal, error)

func (f AuthenticatorFunc) Authenticate(ctx context.Context, token string) (*Principal, error) {
	return f(ctx, token)
}

// AuthRequired returns a Gin middleware function that validates bearer tokens
// and restricts access to authenticated users only.
func AuthRequired(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Authorization ヘッダーから Bearer トークンを取り出す
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Authentication required"})
			return
		}
		tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Authentication required"})
			return
		}

		// 2. 署名・期限・失効・ユーザー存在を検証
		p, err := auth.Authenticate(c.Request.Context(), tokenStr)
		if err != nil || p == nil {
			slog.Warn("authentication failed", "error", err, "remote_addr", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid token"})
			return
		}

		// 3. 後続ハンドラー向けにコンテキストへ格納
		c.Set(ContextUserID, p.UserID)
		c.Set(ContextRole, p.Role)
		c.Set(ContextToken, tokenStr)
		c.Next()
	}
}

// RequireRole aborts with 403 unless AuthRequired stored one of roles.
// It must run after AuthRequired.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		if role == "" || !slices.Contains(roles, role) {
			c.AbortWithStatusJSON(http.StatusForbidden, api.ErrorResponse{Error: "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user ID stored by AuthRequired.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}

// Role returns the authenticated role, or "" when unauthenticated.
func Role(c *gin.Context) string {
	return c.GetString(ContextRole)
}

// Token returns the raw bearer token of the current request.
func Token(c *gin.Context) string {
	return c.GetString(ContextToken)
}
