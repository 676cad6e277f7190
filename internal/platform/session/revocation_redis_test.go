package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis instance for testing.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestNewRevocationRedis(t *testing.T) {
	client, _ := setupTestRedis(t)

	assert.Equal(t, "revoked", NewRevocationRedis(client, "").prefix)
	assert.Equal(t, "deny", NewRevocationRedis(client, "deny").prefix)
}

func TestRevocationRedis_RevokeAndCheck(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRevocationRedis(client, "revoked")
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "jti-1", 7, time.Now().Add(time.Hour)))

	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.Equal(t, "7", mustGet(t, mr, "revoked:jti-1"))
	ttl := mr.TTL("revoked:jti-1")
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)

	revoked, err = store.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevocationRedis_EntryExpiresWithToken(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRevocationRedis(client, "revoked")
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "jti-1", 7, time.Now().Add(time.Minute)))
	mr.FastForward(2 * time.Minute)

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRevocationRedis_AlreadyExpiredIsNoop(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRevocationRedis(client, "revoked")

	require.NoError(t, store.Revoke(context.Background(), "old", 7, time.Now().Add(-time.Second)))

	assert.False(t, mr.Exists("revoked:old"))
}

func TestRevocationRedis_ConnectionError(t *testing.T) {
	client, mr := setupTestRedis(t)
	store := NewRevocationRedis(client, "revoked")
	mr.Close()

	_, err := store.IsRevoked(context.Background(), "jti")
	assert.Error(t, err)
	assert.Error(t, store.Revoke(context.Background(), "jti", 1, time.Now().Add(time.Hour)))
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
