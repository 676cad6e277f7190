package db

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"scholarly_library/internal/platform/config"
)

// TestBuildDSN_MySQLTCP はTCP接続用のDSN文字列が正しく生成されることを検証します。
func TestBuildDSN_MySQLTCP(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Driver:   "mysql",
		User:     "testuser",
		Password: "testpass",
		Name:     "testdb",
		Host:     "localhost",
		Port:     "3306",
	}

	expected := "testuser:testpass@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=true&loc=Local"
	assert.Equal(t, expected, BuildDSN(cfg))
}

// TestBuildDSN_CloudSQLTakesPrecedence はInstanceNameとHost/Portが両方設定されている場合にInstanceNameが優先されることを検証します。
func TestBuildDSN_CloudSQLTakesPrecedence(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Driver:       "mysql",
		User:         "testuser",
		Password:     "testpass",
		Name:         "testdb",
		Host:         "localhost",
		Port:         "3306",
		InstanceName: "project:region:instance",
	}

	expected := "testuser:testpass@unix(/cloudsql/project:region:instance)/testdb?charset=utf8mb4&parseTime=true&loc=Local"
	assert.Equal(t, expected, BuildDSN(cfg))
}

func TestBuildDSN_Postgres(t *testing.T) {
	t.Parallel()

	cfg := Config{Driver: "postgres", User: "u", Password: "p", Name: "library", Host: "pg"}

	assert.Equal(t, "host=pg user=u password=p dbname=library port=5432 sslmode=disable TimeZone=UTC", BuildDSN(cfg))

	cfg.Port = "6543"
	assert.Contains(t, BuildDSN(cfg), "port=6543")
}

func TestBuildDSN_SQLite(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "./library.db", BuildDSN(Config{Driver: "sqlite", SQLitePath: "./library.db"}))
	assert.Equal(t, "file::memory:?cache=shared", BuildDSN(Config{Driver: "sqlite"}))
}

func TestDialector_UnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Dialector("oracle", "dsn")
	assert.Error(t, err)
}

// TestConnectWithRetry_SuccessOnFirstTry は初回接続成功時にリトライせずDBを返すことを検証します。
func TestConnectWithRetry_SuccessOnFirstTry(t *testing.T) {
	t.Parallel()

	mockDB := &gorm.DB{}
	attempts := 0
	opener := func(dsn string) (*gorm.DB, error) {
		attempts++
		return mockDB, nil
	}

	db, err := ConnectWithRetry("test-dsn", 5*time.Second, opener)

	require.NoError(t, err)
	assert.Same(t, mockDB, db)
	assert.Equal(t, 1, attempts)
}

// TestConnectWithRetry_RetriesOnFailure は接続失敗時にリトライして最終的に成功することを検証します。
func TestConnectWithRetry_RetriesOnFailure(t *testing.T) {
	// Not parallel: mutates retryInterval
	orig := retryInterval
	retryInterval = 10 * time.Millisecond
	t.Cleanup(func() { retryInterval = orig })

	mockDB := &gorm.DB{}
	attempts := 0
	opener := func(dsn string) (*gorm.DB, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("connection refused")
		}
		return mockDB, nil
	}

	db, err := ConnectWithRetry("test-dsn", 5*time.Second, opener)

	require.NoError(t, err)
	assert.Same(t, mockDB, db)
	assert.Equal(t, 3, attempts)
}

// TestConnectWithRetry_TimeoutAfterRetries はタイムアウト後にエラーが返されることを検証します。
func TestConnectWithRetry_TimeoutAfterRetries(t *testing.T) {
	orig := retryInterval
	retryInterval = 10 * time.Millisecond
	t.Cleanup(func() { retryInterval = orig })

	attempts := 0
	opener := func(dsn string) (*gorm.DB, error) {
		attempts++
		return nil, errors.New("connection refused")
	}

	_, err := ConnectWithRetry("test-dsn", 50*time.Millisecond, opener)

	assert.Error(t, err)
	assert.GreaterOrEqual(t, attempts, 1)
}

type migratedRow struct {
	ID    uint   `gorm:"primaryKey"`
	Email string `gorm:"uniqueIndex"`
}

func TestOpen_SQLiteWithMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(config.DatabaseConfig{
		Driver:         "sqlite",
		SQLitePath:     path,
		ConnectTimeout: time.Second,
		RunMigrations:  true,
	}, &migratedRow{})
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable(&migratedRow{}))

	require.NoError(t, db.Create(&migratedRow{Email: "a@example.com"}).Error)
	err = db.Create(&migratedRow{Email: "a@example.com"}).Error
	assert.True(t, IsDuplicateKey(err), "expected duplicate key, got %v", err)
}

func TestIsDuplicateKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, true},
		{"wrapped gorm duplicated key", fmt.Errorf("create: %w", gorm.ErrDuplicatedKey), true},
		{"mysql 1062", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"mysql other", &mysql.MySQLError{Number: 1045}, false},
		{"postgres unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"postgres other", &pgconn.PgError{Code: "23503"}, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDuplicateKey(tt.err))
		})
	}
}
