package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/marketgate/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func TestRevocationStore_RevokeAndCheck(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewRevocationStoreWithPrefix(client, "test-revoked:")
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))

	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl, err := client.TTL(ctx, "test-revoked:jti-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour+time.Second)
}

func TestRevocationStore_RevokeIsIdempotent(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewRevocationStore(client)
	ctx := context.Background()
	until := time.Now().Add(time.Minute)

	require.NoError(t, store.Revoke(ctx, "jti-twice", until))
	require.NoError(t, store.Revoke(ctx, "jti-twice", until))

	revoked, err := store.IsRevoked(ctx, "jti-twice")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRevocationStore_ExpiredTokenNotStored(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	store := NewRevocationStore(client)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "jti-old", time.Now().Add(-time.Minute)))

	n, err := client.Exists(ctx, "revoked:jti-old").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRevocationStore_EmptyID(t *testing.T) {
	store := NewRevocationStore(nil)
	ctx := context.Background()

	require.ErrorIs(t, store.Revoke(ctx, "", time.Now().Add(time.Hour)), ErrEmptyTokenID)

	revoked, err := store.IsRevoked(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)
}
