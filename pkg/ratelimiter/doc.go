// Package ratelimiter limits requests per key.
//
// Two stores implement the Store interface:
//
//   - MemoryStore keeps a token bucket per key in process memory, built on
//     golang.org/x/time/rate. Idle buckets are removed by a cleanup loop
//     started with Start or Run.
//   - RedisStore counts requests per fixed window in Redis so that several
//     processes share one limit.
//
// Basic usage:
//
//	store, err := ratelimiter.NewMemoryStore(ratelimiter.Config{
//		Limit:  100,
//		Window: time.Minute,
//	})
//	if err != nil {
//		return err
//	}
//
//	res, err := store.Allow(ctx, clientIP)
//	if err != nil {
//		return err
//	}
//	if !res.Allowed() {
//		// wait res.RetryAfter()
//	}
//
// The middleware package exposes both stores through middleware.RateLimit,
// which also sets the X-RateLimit-* response headers.
package ratelimiter
