package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

// Config describes a limit of Limit requests per Window for each key.
type Config struct {
	Limit  int
	Window time.Duration

	// Burst caps the requests accepted at once. Zero means Limit.
	// Only the memory store honors it; the Redis store counts fixed windows.
	Burst int
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", ErrInvalidConfig, c.Limit)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfig, c.Window)
	}
	if c.Burst < 0 {
		return fmt.Errorf("%w: burst cannot be negative, got %d", ErrInvalidConfig, c.Burst)
	}
	return nil
}

func (c Config) burst() int {
	if c.Burst > 0 {
		return c.Burst
	}
	return c.Limit
}

// Result is the outcome of one Allow call.
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time

	allowed    bool
	retryAfter time.Duration
}

// Allowed reports whether the request may proceed.
func (r Result) Allowed() bool {
	return r.allowed
}

// RetryAfter is how long a denied caller should wait. It is zero for
// allowed requests.
func (r Result) RetryAfter() time.Duration {
	if r.allowed {
		return 0
	}
	return max(r.retryAfter, 0)
}

// Store decides whether the request identified by key is within its limit.
type Store interface {
	Allow(ctx context.Context, key string) (Result, error)
}
