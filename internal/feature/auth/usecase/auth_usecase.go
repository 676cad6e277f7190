package usecase

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"scholarly_library/internal/feature/auth/domain/entity"
)

const (
	// minPasswordLength はパスワードの最低文字数を定義します。
	minPasswordLength = 8

	// maxPasswordBytes は bcrypt が扱える入力の上限です。
	maxPasswordBytes = 72

	// dummyPasswordHash はユーザーが存在しない場合のタイミング攻撃緩和用ダミーハッシュです。
	dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
)

// UserRepository はユーザーエンティティの永続化層を抽象化します。
// Goの慣例に従い、インターフェースはプロバイダー（adapters）ではなくコンシューマー（usecase）が定義します。
type UserRepository interface {
	// Create は新しいユーザーをストレージに永続化します。
	// 同じメールアドレスのユーザーが既に存在する場合、ErrEmailAlreadyExists を返します。
	Create(ctx context.Context, user *entity.User) error

	// FindByEmail は指定されたメールアドレスに一致するユーザーを取得します。
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// FindByID は指定されたIDに一致するユーザーを取得します。
	FindByID(ctx context.Context, id uint) (*entity.User, error)

	// Update は名前・メールアドレス・ロールを更新します。
	Update(ctx context.Context, user *entity.User) error

	// List は全ユーザーを登録順に返します。
	List(ctx context.Context) ([]entity.User, error)
}

// TokenClaims is the verified content of a session token.
type TokenClaims struct {
	UserID    uint
	TokenID   string
	ExpiresAt time.Time
}

// TokenService はセッショントークンの発行と検証を抽象化します。
type TokenService interface {
	// Issue は userID を subject とする署名済みトークンを発行します。
	Issue(userID uint) (string, error)
	// Verify は署名と有効期限を検証します。
	Verify(token string) (*TokenClaims, error)
}

// Options tunes password hashing and role assignment.
type Options struct {
	// BcryptCost is raised to bcrypt.DefaultCost when lower.
	BcryptCost int
	// AdminEmails register with the admin role.
	AdminEmails []string
}

// authUsecase は認証ビジネスロジックを実装します。
type authUsecase struct {
	users       UserRepository
	tokens      TokenService
	revocations RevocationStore
	bcryptCost  int
	adminEmails []string
}

// NewAuthUsecase はauthUsecaseの新しいインスタンスを生成します。
func NewAuthUsecase(users UserRepository, tokens TokenService, revocations RevocationStore, opts Options) *authUsecase {
	cost := max(opts.BcryptCost, bcrypt.DefaultCost)
	cost = min(cost, bcrypt.MaxCost)

	admins := make([]string, 0, len(opts.AdminEmails))
	for _, e := range opts.AdminEmails {
		if e = normalizeEmail(e); e != "" {
			admins = append(admins, e)
		}
	}

	return &authUsecase{
		users:       users,
		tokens:      tokens,
		revocations: revocations,
		bcryptCost:  cost,
		adminEmails: admins,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validatePassword はパスワードがセキュリティ要件を満たしているかチェックします。
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters long", ErrWeakPassword, minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidInput, maxPasswordBytes)
	}
	return nil
}

// Register はハッシュ化されたパスワードで新規ユーザーを登録し、トークンを発行します。
func (u *authUsecase) Register(ctx context.Context, name, email, password string) (*entity.User, string, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" {
		return nil, "", fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}
	if err := validatePassword(password); err != nil {
		return nil, "", err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), u.bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entity.User{
		Name:     name,
		Email:    email,
		Password: string(hashed),
		Role:     entity.RoleUser,
	}
	if slices.Contains(u.adminEmails, email) {
		user.Role = entity.RoleAdmin
	}

	if err := u.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := u.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	return user, token, nil
}

// Login はユーザーを認証し、成功時にトークンを返します。
// タイミング攻撃を防止するため、ユーザーが存在しない場合でもbcrypt比較を実行します。
func (u *authUsecase) Login(ctx context.Context, email, password string) (*entity.User, string, error) {
	user, err := u.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, "", err
	}

	passwordHash := dummyPasswordHash
	if err == nil {
		passwordHash = user.Password
	}

	// 第1引数はハッシュ化パスワード、第2引数は平文パスワード
	compareErr := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password))

	// ユーザー未検出またはパスワード不一致の場合、同一のエラーを返す
	if err != nil || compareErr != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := u.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}
	return user, token, nil
}

// Authenticate はトークンを検証し、対応するユーザーを返します。
// ロールは常に最新のユーザーレコードから取得します。
func (u *authUsecase) Authenticate(ctx context.Context, token string) (*entity.User, error) {
	claims, err := u.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := u.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("%w: subject no longer exists", ErrInvalidToken)
		}
		return nil, err
	}
	return user, nil
}

// Logout はトークンの jti を有効期限まで失効リストに登録します。
// 既に失効済みのトークンに対しても成功します。
func (u *authUsecase) Logout(ctx context.Context, token string) error {
	claims, err := u.tokens.Verify(token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := u.revocations.Revoke(ctx, claims.TokenID, claims.UserID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (u *authUsecase) verify(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := u.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	revoked, err := u.revocations.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	return claims, nil
}

// Profile は指定ユーザーを返します。
func (u *authUsecase) Profile(ctx context.Context, userID uint) (*entity.User, error) {
	return u.users.FindByID(ctx, userID)
}

// UpdateProfile は名前・メールアドレスを部分更新します。nil のフィールドは変更しません。
func (u *authUsecase) UpdateProfile(ctx context.Context, userID uint, name, email *string) (*entity.User, error) {
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		user.Name = n
	}

	if email != nil {
		e := normalizeEmail(*email)
		if e == "" {
			return nil, fmt.Errorf("%w: email must not be empty", ErrInvalidInput)
		}
		if e != user.Email {
			other, err := u.users.FindByEmail(ctx, e)
			switch {
			case err == nil && other.ID != user.ID:
				return nil, ErrEmailAlreadyExists
			case err != nil && !errors.Is(err, ErrUserNotFound):
				return nil, err
			}
			user.Email = e
		}
	}

	if err := u.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers は全ユーザーを返します（管理者向け）。
func (u *authUsecase) ListUsers(ctx context.Context) ([]entity.User, error) {
	return u.users.List(ctx)
}

// PromoteToAdmin は指定メールアドレスのユーザーに admin ロールを付与します。
func (u *authUsecase) PromoteToAdmin(ctx context.Context, email string) (*entity.User, error) {
	user, err := u.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user.IsAdmin() {
		return user, nil
	}

	user.Role = entity.RoleAdmin
	if err := u.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
