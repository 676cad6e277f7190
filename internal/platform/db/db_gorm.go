// Package db はGORMによるデータベース接続を提供します。
package db

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	gmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"scholarly_library/internal/platform/config"
)

// retryInterval は接続リトライの間隔です。
var retryInterval = 3 * time.Second

// Opener はDSNからgorm.DBを開く関数です。テストで差し替えられます。
type Opener func(dsn string) (*gorm.DB, error)

// Config はDSN組み立てに必要な接続情報です。
type Config struct {
	Driver       string
	User         string
	Password     string
	Name         string
	Host         string
	Port         string
	InstanceName string
	SQLitePath   string
}

// FromSettings converts the loaded application settings into a Config.
func FromSettings(s config.DatabaseConfig) Config {
	return Config{
		Driver:       s.Driver,
		User:         s.User,
		Password:     s.Password,
		Name:         s.Name,
		Host:         s.Host,
		Port:         s.Port,
		InstanceName: s.InstanceName,
		SQLitePath:   s.SQLitePath,
	}
}

// BuildDSN はドライバーごとのDSN文字列を生成します。
// MySQLではInstanceNameが設定されている場合、Cloud SQLのUnixソケット接続を優先します。
func BuildDSN(cfg Config) string {
	switch cfg.Driver {
	case "postgres":
		port := cfg.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.User, cfg.Password, cfg.Name, port)
	case "mysql":
		if cfg.InstanceName != "" {
			return fmt.Sprintf("%s:%s@unix(/cloudsql/%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
				cfg.User, cfg.Password, cfg.InstanceName, cfg.Name)
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
	default:
		if cfg.SQLitePath == "" {
			return "file::memory:?cache=shared"
		}
		return cfg.SQLitePath
	}
}

// Dialector returns the GORM dialector for driver.
func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "sqlite":
		return sqlite.Open(dsn), nil
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return gmysql.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// NewOpener returns an Opener for driver using the shared GORM config.
func NewOpener(driver string) Opener {
	return func(dsn string) (*gorm.DB, error) {
		d, err := Dialector(driver, dsn)
		if err != nil {
			return nil, err
		}
		return gorm.Open(d, &gorm.Config{TranslateError: true})
	}
}

// ConnectWithRetry はtimeoutに達するまで接続をリトライします。
func ConnectWithRetry(dsn string, timeout time.Duration, open Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := open(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("db connect failed after %v: %w", timeout, err)
		}
		slog.Warn("db connect failed, retrying", "error", err, "interval", retryInterval)
		time.Sleep(retryInterval)
	}
}

// Open connects using the application settings and, when enabled, migrates models.
func Open(s config.DatabaseConfig, models ...any) (*gorm.DB, error) {
	dsn := s.DSN
	if dsn == "" {
		dsn = BuildDSN(FromSettings(s))
	}

	db, err := ConnectWithRetry(dsn, s.ConnectTimeout, NewOpener(s.Driver))
	if err != nil {
		return nil, err
	}

	if s.RunMigrations {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return db, nil
}

// IsDuplicateKey はユニーク制約違反かどうかを判定します。
// TranslateError有効時のgorm.ErrDuplicatedKeyに加え、ドライバー固有のエラーも確認します。
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// MySQLエラー1062: ユニークキーの重複エントリ
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	// PostgreSQL SQLSTATE 23505: unique_violation
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}
