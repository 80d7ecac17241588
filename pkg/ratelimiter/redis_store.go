package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore counts requests per fixed window in Redis, sharing limits
// between processes.
type RedisStore struct {
	client redis.Cmdable
	cfg    Config
	prefix string
	now    func() time.Time
}

// RedisStoreOption configures a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithKeyPrefix namespaces the counter keys. The default is "ratelimit:".
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(rs *RedisStore) {
		rs.prefix = prefix
	}
}

// NewRedisStore creates a store allowing cfg.Limit requests per cfg.Window.
func NewRedisStore(client redis.Cmdable, cfg Config, opts ...RedisStoreOption) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is required", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rs := &RedisStore{
		client: client,
		cfg:    cfg,
		prefix: "ratelimit:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(rs)
	}
	return rs, nil
}

// Allow increments the window counter of key. The first increment of a
// window sets its expiry.
func (rs *RedisStore) Allow(ctx context.Context, key string) (Result, error) {
	k := rs.prefix + key

	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, rs.cfg.Window)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	remainingWindow := ttl.Val()
	if remainingWindow <= 0 {
		remainingWindow = rs.cfg.Window
	}

	count := int(incr.Val())
	res := Result{
		Limit:     rs.cfg.Limit,
		Remaining: max(rs.cfg.Limit-count, 0),
		ResetAt:   rs.now().Add(remainingWindow),
		allowed:   count <= rs.cfg.Limit,
	}
	if !res.allowed {
		res.retryAfter = remainingWindow
	}
	return res, nil
}

// Reset deletes the counter of key.
func (rs *RedisStore) Reset(ctx context.Context, key string) error {
	if err := rs.client.Del(ctx, rs.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
