package redis

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside/authgate/internal/testutil"
)

// setupTestRedis creates a Redis client for testing.
// Tests will be skipped if Redis is not available.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	return testutil.SetupTestRedis(t)
}

func TestStateCache_MarkUsed(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	cache := NewStateCache(client)
	ctx := context.Background()
	id := uuid.NewString()

	first, err := cache.MarkUsed(ctx, id, time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	// Second use of the same state must be rejected.
	second, err := cache.MarkUsed(ctx, id, time.Minute)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestStateCache_DistinctStates(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	cache := NewStateCache(client)
	ctx := context.Background()

	a, err := cache.MarkUsed(ctx, uuid.NewString(), time.Minute)
	require.NoError(t, err)
	b, err := cache.MarkUsed(ctx, uuid.NewString(), time.Minute)
	require.NoError(t, err)
	assert.True(t, a)
	assert.True(t, b)
}

func TestStateCache_EntryExpires(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	cache := NewStateCache(client)
	ctx := context.Background()
	id := uuid.NewString()

	first, err := cache.MarkUsed(ctx, id, 100*time.Millisecond)
	require.NoError(t, err)
	require.True(t, first)

	time.Sleep(150 * time.Millisecond)

	// The entry lived no longer than the state token would have.
	again, err := cache.MarkUsed(ctx, id, time.Minute)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestStateCache_EmptyID(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	cache := NewStateCache(client)
	_, err := cache.MarkUsed(context.Background(), "", time.Minute)
	assert.Error(t, err)
}

func TestStateCache_NonPositiveTTL(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	cache := NewStateCache(client)
	first, err := cache.MarkUsed(context.Background(), uuid.NewString(), 0)
	require.NoError(t, err)
	assert.False(t, first)
}

func TestStateCache_CustomPrefix(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	cache := NewStateCacheWithPrefix(client, "test:state:")
	ctx := context.Background()
	id := uuid.NewString()

	first, err := cache.MarkUsed(ctx, id, time.Minute)
	require.NoError(t, err)
	require.True(t, first)

	exists, err := client.Exists(ctx, "test:state:"+id).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}
