package ratelimiter_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flowkit/pkg/ratelimiter"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestNewRedisStore_Validation(t *testing.T) {
	t.Parallel()

	_, err := ratelimiter.NewRedisStore(nil, ratelimiter.Config{Limit: 1, Window: time.Second})
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()
	_, err = ratelimiter.NewRedisStore(client, ratelimiter.Config{})
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
}

func TestRedisStore_Unavailable(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	store, err := ratelimiter.NewRedisStore(client, ratelimiter.Config{Limit: 1, Window: time.Second})
	require.NoError(t, err)

	_, err = store.Allow(context.Background(), "k")
	assert.ErrorIs(t, err, ratelimiter.ErrStoreUnavailable)
}

func TestRedisStore_Allow(t *testing.T) {
	t.Parallel()

	client := redisClient(t)
	ctx := context.Background()
	store, err := ratelimiter.NewRedisStore(client,
		ratelimiter.Config{Limit: 2, Window: time.Minute},
		ratelimiter.WithKeyPrefix("flowkit-test:"+uuid.NewString()+":"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Reset(ctx, "k") })

	res, err := store.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 1, res.Remaining)

	res, err = store.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
	assert.Equal(t, 0, res.Remaining)

	res, err = store.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, res.Allowed())
	assert.Positive(t, res.RetryAfter())
	assert.LessOrEqual(t, res.RetryAfter(), time.Minute)

	require.NoError(t, store.Reset(ctx, "k"))
	res, err = store.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, res.Allowed())
}
