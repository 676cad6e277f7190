package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	authhandler "scholarly_library/internal/feature/auth/transport/handler"
	papershandler "scholarly_library/internal/feature/papers/transport/handler"
	"scholarly_library/internal/platform/http/handler"
	jwtmw "scholarly_library/internal/platform/jwt"
)

// Options はルーター構築に必要な依存関係と設定です。
type Options struct {
	Authenticator jwtmw.Authenticator
	// AuthLimiter は register/login に適用されます。nil なら制限しません。
	AuthLimiter    gin.HandlerFunc
	AllowedOrigins []string
	ReadyChecks    map[string]handler.Pinger
	// UploadsPrefix と UploadsDir が両方設定されていればローカル保存のPDFを配信します。
	UploadsPrefix string
	UploadsDir    string
	// RequestLog はgin標準のアクセスログを有効にします。
	RequestLog bool
}

func NewRouter(authH *authhandler.AuthHandler, papersH *papershandler.PapersHandler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.RequestLog {
		r.Use(gin.Logger())
	}
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	limited := opts.AuthLimiter
	if limited == nil {
		limited = func(c *gin.Context) { c.Next() }
	}
	authRequired := jwtmw.AuthRequired(opts.Authenticator)

	// 認証不要
	// 導通確認用
	r.GET("/healthz", handler.Health)
	r.HEAD("/healthz", handler.Health)
	r.OPTIONS("/healthz", handler.Health)
	r.GET("/readyz", handler.Ready(opts.ReadyChecks))

	if opts.UploadsPrefix != "" && opts.UploadsDir != "" {
		r.Static(opts.UploadsPrefix, opts.UploadsDir)
	}

	users := r.Group("/users")
	{
		// 新規ユーザー登録・ログイン（JWT 発行）
		users.POST("/register", limited, authH.Register)
		users.POST("/login", limited, authH.Login)

		// 認証必須のルート
		users.POST("/logout", authRequired, authH.Logout)
		users.GET("/profile", authRequired, authH.Profile)
		users.PUT("/profile", authRequired, authH.UpdateProfile)
	}

	papers := r.Group("/papers")
	{
		papers.GET("", papersH.Search)
		papers.GET("/:id", papersH.Get)
		papers.GET("/:id/related", papersH.Related)

		// 認証必須のルート
		papers.GET("/user", authRequired, papersH.Mine)
		papers.POST("", authRequired, papersH.Create)
		papers.POST("/upload", authRequired, papersH.Upload)
		papers.PUT("/:id", authRequired, papersH.Update)
		papers.DELETE("/:id", authRequired, papersH.Delete)
	}

	// 管理者専用
	admin := r.Group("/admin")
	admin.Use(authRequired, jwtmw.RequireRole(jwtmw.RoleAdmin))
	{
		admin.GET("/users", authH.ListUsers)
		admin.POST("/seed", papersH.AdminSeed)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
