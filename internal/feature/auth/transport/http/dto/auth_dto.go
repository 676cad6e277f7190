// Package dto はauthフィーチャーのHTTPトランスポート層のデータ転送オブジェクトを定義します。
package dto

import (
	"time"

	"scholarly_library/internal/feature/auth/domain/entity"
)

// RegisterReq は /users/register のリクエストボディです。
// パスワード長はusecase側で検証し、専用のエラーメッセージを返します。
type RegisterReq struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginReq は /users/login のリクエストボディです。
type LoginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileReq は PUT /users/profile のリクエストボディです。省略したフィールドは変更されません。
type UpdateProfileReq struct {
	Name  *string `json:"name"`
	Email *string `json:"email" binding:"omitempty,email"`
}

// UserRes is the public view of a user. The password hash is never serialized.
type UserRes struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuthRes is returned by register and login.
type AuthRes struct {
	User  UserRes `json:"user"`
	Token string  `json:"token"`
}

// NewUserRes converts a user entity to its public view.
func NewUserRes(u *entity.User) UserRes {
	return UserRes{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
