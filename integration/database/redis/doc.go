// Package redis opens go-redis clients with retry and health checking.
//
// It backs the distributed rate limiter:
//
//	client, err := redis.Connect(ctx, redis.Config{
//		ConnectionURL: "redis://localhost:6379/0",
//		RetryAttempts: 3,
//		RetryInterval: time.Second,
//	})
//	if err != nil {
//		return err
//	}
//	store, err := ratelimiter.NewRedisStore(client, ratelimiter.Config{Limit: 100, Window: time.Minute})
//
// Connect accepts redis:// and rediss:// URLs and fails with ErrRedisNotReady
// when the server does not answer within the retry budget.
package redis
