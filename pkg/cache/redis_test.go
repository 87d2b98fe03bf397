package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a test Redis client using miniredis
func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := &Client{
		Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
	}

	return client, mr
}

func TestClient_SetGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	err := client.Set(ctx, "test:key1", "value1", 1*time.Hour)
	require.NoError(t, err)

	val, err := client.Get(ctx, "test:key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", val)
}

func TestClient_Delete(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "test:key1", "value1", time.Hour))
	require.NoError(t, client.Delete(ctx, "test:key1"))

	_, err := client.Get(ctx, "test:key1")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestClient_Exists(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	exists, err := client.Exists(ctx, "test:exists")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, client.Set(ctx, "test:exists", "1", time.Hour))

	exists, err = client.Exists(ctx, "test:exists")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestClient_JSONRoundTrip(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	in := map[string]any{"sun": "Bilancia", "degree": 12.5}

	require.NoError(t, client.SetJSON(ctx, "transits:2025-10-15", in, time.Hour))

	var out map[string]any
	require.NoError(t, client.GetJSON(ctx, "transits:2025-10-15", &out))
	assert.Equal(t, "Bilancia", out["sun"])
	assert.Equal(t, 12.5, out["degree"])
}

func TestClient_GetJSON_Miss(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	var out map[string]any
	err := client.GetJSON(context.Background(), "missing", &out)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestClient_TTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "test:ttl", "v", 10*time.Minute))

	ttl, err := client.TTL(ctx, "test:ttl")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, ttl)

	mr.FastForward(11 * time.Minute)
	exists, err := client.Exists(ctx, "test:ttl")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestClient_Ping(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx))

	mr.Close()
	assert.Error(t, client.Ping(ctx))
}
