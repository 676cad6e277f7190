package di

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"scholarly_library/internal/app/router"
	authadapters "scholarly_library/internal/feature/auth/adapters"
	"scholarly_library/internal/feature/auth/domain/entity"
	authhandler "scholarly_library/internal/feature/auth/transport/handler"
	authusecase "scholarly_library/internal/feature/auth/usecase"
	papersadapters "scholarly_library/internal/feature/papers/adapters"
	papershandler "scholarly_library/internal/feature/papers/transport/handler"
	papersusecase "scholarly_library/internal/feature/papers/usecase"
	"scholarly_library/internal/platform/cache"
	"scholarly_library/internal/platform/config"
	"scholarly_library/internal/platform/http/handler"
	jwtmw "scholarly_library/internal/platform/jwt"
	"scholarly_library/internal/platform/ratelimit"
)

// Models returns every gorm model the application migrates.
func Models() []any {
	return []any{
		&papersadapters.PaperModel{},
		&entity.User{},
		&authadapters.RevokedTokenModel{},
	}
}

// NewAuthenticator adapts the auth usecase to the JWT middleware.
func NewAuthenticator(auth AuthService) jwtmw.Authenticator {
	return jwtmw.AuthenticatorFunc(func(ctx context.Context, token string) (*jwtmw.Principal, error) {
		u, err := auth.Authenticate(ctx, token)
		if err != nil {
			return nil, err
		}
		return &jwtmw.Principal{UserID: u.ID, Role: u.Role}, nil
	})
}

// NewPaperRepository wraps the SQL repository with the Redis read-through cache.
// rdb が nil の場合キャッシュはバイパスされます。
func NewPaperRepository(db *gorm.DB, rdb *redis.Client, cfg config.CacheConfig) papersusecase.PaperRepository {
	return cache.NewCachingPaperRepository(rdb, cfg.TTL, papersadapters.NewPaperGorm(db), cfg.Namespace)
}

// AuthService is the identity gate as used by the HTTP layer and the CLIs.
type AuthService interface {
	authhandler.AuthUsecase
	Authenticate(ctx context.Context, token string) (*entity.User, error)
	PromoteToAdmin(ctx context.Context, email string) (*entity.User, error)
}

// NewAuthService wires the identity gate.
func NewAuthService(db *gorm.DB, rdb *redis.Client, cfg config.AuthConfig) AuthService {
	secret := cfg.JWTSecret
	if secret == "" {
		// 開発環境のみ到達（本番は設定検証で弾かれる）。再起動でトークンは無効になる
		slog.Warn("JWT_SECRET is not set; using an ephemeral secret. Set a strong secret in production.")
		secret = uuid.NewString() + uuid.NewString()
	}

	tokens := authadapters.NewJWTTokens(jwtmw.NewManager(secret, cfg.TokenTTL))
	return authusecase.NewAuthUsecase(
		authadapters.NewUserGorm(db),
		tokens,
		NewRevocationStore(rdb, db),
		authusecase.Options{BcryptCost: cfg.BcryptCost, AdminEmails: cfg.AdminEmails},
	)
}

// NewEngine builds the HTTP engine with every route wired. The returned
// cleanup releases background resources owned by the engine.
func NewEngine(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*gin.Engine, func(), error) {
	files, err := NewFileStore(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("file store: %w", err)
	}

	authUC := NewAuthService(db, rdb, cfg.Auth)
	papersUC := papersusecase.NewPaperUsecase(NewPaperRepository(db, rdb, cfg.Cache), files, cfg.Storage.MaxUploadBytes)

	limiter := ratelimit.New(rdb, ratelimit.Config{
		Requests: cfg.RateLimit.Requests,
		Window:   cfg.RateLimit.Window,
		Burst:    cfg.RateLimit.Burst,
		FailOpen: cfg.RateLimit.FailOpen,
	})

	opts := router.Options{
		Authenticator:  NewAuthenticator(authUC),
		AuthLimiter:    limiter.Middleware(),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		ReadyChecks:    readyChecks(db, rdb, files),
		RequestLog:     cfg.IsDevelopment(),
	}
	if cfg.Storage.Driver == "local" {
		opts.UploadsPrefix = cfg.Storage.PublicPrefix
		opts.UploadsDir = cfg.Storage.LocalDir
	}

	engine := router.NewRouter(
		authhandler.NewAuthHandler(authUC),
		papershandler.NewPapersHandler(papersUC, cfg.Storage.MaxUploadBytes),
		opts,
	)
	return engine, limiter.Close, nil
}

func readyChecks(db *gorm.DB, rdb *redis.Client, files papersusecase.FileStore) map[string]handler.Pinger {
	checks := map[string]handler.Pinger{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if p, ok := files.(interface{ Ping(context.Context) error }); ok {
		checks["storage"] = p.Ping
	}
	return checks
}
