package di

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"scholarly_library/internal/platform/config"
	"scholarly_library/internal/platform/session"
	"scholarly_library/internal/platform/storage"
)

func TestNewRevocationStore(t *testing.T) {
	t.Run("redis available", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		store := NewRevocationStore(rdb, nil)

		assert.IsType(t, &session.RevocationRedis{}, store)
	})

	t.Run("falls back to database", func(t *testing.T) {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		require.NoError(t, err)

		store := NewRevocationStore(nil, db)

		require.NotNil(t, store)
		_, isRedis := store.(*session.RevocationRedis)
		assert.False(t, isRedis)
	})
}

func TestNewFileStore(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		store, err := NewFileStore(context.Background(), config.StorageConfig{
			Driver:       "local",
			LocalDir:     t.TempDir(),
			PublicPrefix: "/uploads",
		})
		require.NoError(t, err)
		assert.IsType(t, &storage.Local{}, store)
	})

	t.Run("s3", func(t *testing.T) {
		store, err := NewFileStore(context.Background(), config.StorageConfig{
			Driver: "s3",
			S3: config.S3Config{
				Bucket:    "papers",
				Region:    "us-east-1",
				Endpoint:  "http://127.0.0.1:9000",
				AccessKey: "test",
				SecretKey: "test",
				Timeout:   time.Second,
			},
		})
		require.NoError(t, err)
		assert.IsType(t, &storage.S3{}, store)
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := NewFileStore(context.Background(), config.StorageConfig{Driver: "ftp"})
		assert.Error(t, err)
	})
}
