package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"scholarly_library/internal/app/di"
	"scholarly_library/internal/platform/config"
	infradb "scholarly_library/internal/platform/db"
	"scholarly_library/internal/platform/logging"
	infraredis "scholarly_library/internal/platform/redis"
)

const revocationPurgeInterval = time.Hour

func main() {
	os.Exit(run(os.Args[1:]))
}

// run はプロセスの終了コードを返します。
func run(args []string) int {
	fs := pflag.NewFlagSet("server", pflag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	slog.SetDefault(logging.New(os.Stdout, cfg.Log))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// db
	db, err := infradb.Open(cfg.Database, di.Models()...)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		return 1
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Redis
	var rdb *redisv9.Client
	if tmp, err := infraredis.NewRedisClient(ctx, cfg.Redis); err != nil {
		slog.Warn("Redis unavailable. Running without cache.", "error", err)
	} else {
		rdb = tmp
		defer func() {
			if err := rdb.Close(); err != nil {
				slog.Error("failed to close Redis client", "error", err)
			}
		}()
	}

	engine, cleanup, err := di.NewEngine(ctx, cfg, db, rdb)
	if err != nil {
		slog.Error("failed to build application", "error", err)
		return 1
	}
	defer cleanup()

	// 失効リストがDBにある場合は期限切れ分を定期的に掃除する
	if purger, ok := di.NewRevocationStore(rdb, db).(revocationPurger); ok {
		go purgeRevocations(ctx, purger)
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("server starting", "address", srv.Addr, "environment", cfg.App.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		return 1
	}
	return 0
}

type revocationPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

func purgeRevocations(ctx context.Context, purger revocationPurger) {
	ticker := time.NewTicker(revocationPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := purger.DeleteExpired(ctx)
			if err != nil {
				slog.Warn("failed to purge revoked tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged expired revoked tokens", "count", n)
			}
		}
	}
}
