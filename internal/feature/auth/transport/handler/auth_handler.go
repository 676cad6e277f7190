// Package handler はauthフィーチャーのHTTPハンドラーを提供します。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"scholarly_library/internal/api"
	"scholarly_library/internal/feature/auth/domain/entity"
	"scholarly_library/internal/feature/auth/transport/http/dto"
	"scholarly_library/internal/feature/auth/usecase"
	jwtmw "scholarly_library/internal/platform/jwt"
)

// AuthUsecase は認証操作のユースケースを定義します。
// Goの慣例に従い、インターフェースはプロバイダー（usecase）ではなくコンシューマー（handler）が定義します。
type AuthUsecase interface {
	Register(ctx context.Context, name, email, password string) (*entity.User, string, error)
	Login(ctx context.Context, email, password string) (*entity.User, string, error)
	Logout(ctx context.Context, token string) error
	Profile(ctx context.Context, userID uint) (*entity.User, error)
	UpdateProfile(ctx context.Context, userID uint, name, email *string) (*entity.User, error)
	ListUsers(ctx context.Context) ([]entity.User, error)
}

// AuthHandler は認証操作のHTTPリクエストを処理します。
type AuthHandler struct {
	auth AuthUsecase
}

// NewAuthHandler はAuthHandlerの新しいインスタンスを生成します。
func NewAuthHandler(auth AuthUsecase) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register はユーザー登録APIエンドポイントを処理します。
// - バリデーションエラー時は400を返却
// - メール重複時は409を返却（既存レコードは変更しない）
// - 成功時はユーザーとトークン付きで201を返却
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("register validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Name, email and a valid password are required"})
		return
	}

	user, token, err := h.auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		slog.Warn("register failed", "error", err, "remote_addr", c.ClientIP())
		writeError(c, err)
		return
	}

	slog.Info("user registered", "user_id", user.ID, "remote_addr", c.ClientIP())
	c.JSON(http.StatusCreated, dto.AuthRes{User: dto.NewUserRes(user), Token: token})
}

// Login はユーザーログインAPIエンドポイントを処理します。
// メール未登録とパスワード不一致は同じ401レスポンスになります。
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Warn("login validation failed", "error", err, "remote_addr", c.ClientIP())
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Email and password are required"})
		return
	}

	user, token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("login failed", "error", err, "remote_addr", c.ClientIP())
		writeError(c, err)
		return
	}

	slog.Info("user login successful", "user_id", user.ID, "remote_addr", c.ClientIP())
	c.JSON(http.StatusOK, dto.AuthRes{User: dto.NewUserRes(user), Token: token})
}

// Logout は現在のトークンを失効させます。
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), jwtmw.Token(c)); err != nil {
		slog.Warn("logout failed", "error", err, "remote_addr", c.ClientIP())
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "Logged out successfully"})
}

// Profile は認証済みユーザーのプロフィールを返します。
func (h *AuthHandler) Profile(c *gin.Context) {
	userID, ok := jwtmw.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Authentication required"})
		return
	}

	user, err := h.auth.Profile(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserRes(user))
}

// UpdateProfile は名前・メールアドレスを更新します。
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	userID, ok := jwtmw.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req dto.UpdateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Invalid profile data"})
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), userID, req.Name, req.Email)
	if err != nil {
		slog.Warn("profile update failed", "error", err, "user_id", userID, "remote_addr", c.ClientIP())
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewUserRes(user))
}

// ListUsers は全ユーザーを返します（admin専用ルート）。
func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]dto.UserRes, 0, len(users))
	for i := range users {
		out = append(out, dto.NewUserRes(&users[i]))
	}
	c.JSON(http.StatusOK, out)
}

// writeError maps usecase errors to status codes. Unknown errors become a
// generic 500; the detail only goes to the log.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid credentials"})
	case errors.Is(err, usecase.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "Invalid token"})
	case errors.Is(err, usecase.ErrEmailAlreadyExists):
		c.JSON(http.StatusConflict, api.ErrorResponse{Error: "User already exists"})
	case errors.Is(err, usecase.ErrWeakPassword):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "Password must be at least 8 characters"})
	case errors.Is(err, usecase.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
	case errors.Is(err, usecase.ErrUserNotFound):
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "User not found"})
	default:
		slog.Error("auth request failed", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Internal server error"})
	}
}
