package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"scholarly_library/internal/app/di"
	"scholarly_library/internal/feature/papers/fixtures"
	papersusecase "scholarly_library/internal/feature/papers/usecase"
	"scholarly_library/internal/platform/config"
	infradb "scholarly_library/internal/platform/db"
	"scholarly_library/internal/platform/logging"
	infraredis "scholarly_library/internal/platform/redis"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run はプロセスの終了コードを返します。
func run(args []string) int {
	fs := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	adminEmail := fs.String("admin-email", "", "promote this registered user to admin")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	slog.SetDefault(logging.New(os.Stdout, cfg.Log))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db, err := infradb.Open(cfg.Database, di.Models()...)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		return 1
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	// キャッシュの無効化のためRedisがあれば使う
	rdb, err := infraredis.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		rdb = nil
	} else {
		defer rdb.Close()
	}

	files, err := di.NewFileStore(ctx, cfg.Storage)
	if err != nil {
		slog.Error("failed to open file store", "error", err)
		return 1
	}

	papers, err := fixtures.SamplePapers()
	if err != nil {
		slog.Error("failed to load sample papers", "error", err)
		return 1
	}

	uc := papersusecase.NewPaperUsecase(di.NewPaperRepository(db, rdb, cfg.Cache), files, cfg.Storage.MaxUploadBytes)
	n, err := uc.Seed(ctx, papers)
	if err != nil {
		slog.Error("seed failed", "error", err)
		return 1
	}
	slog.Info("seed ok", "inserted", n, "skipped", len(papers)-n)

	if *adminEmail != "" {
		user, err := di.NewAuthService(db, rdb, cfg.Auth).PromoteToAdmin(ctx, *adminEmail)
		if err != nil {
			slog.Error("failed to promote admin", "email", *adminEmail, "error", err)
			return 1
		}
		slog.Info("admin promoted", "user_id", user.ID)
	}
	return 0
}
