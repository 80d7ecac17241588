package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/pkg/ratelimiter"
)

// KindRateLimited tags requests rejected by RateLimit.
const KindRateLimited handler.Kind = "RATE_LIMITED"

var ErrRateLimited = errors.New("rate limit exceeded")

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Skip bypasses the middleware for matching requests.
	Skip func(c *handler.Context) bool
	// Store decides whether a key is within its limit. Required.
	Store ratelimiter.Store
	// KeyExtractor defaults to the client IP.
	KeyExtractor func(c *handler.Context) string
	// ErrorHandler answers rejected requests. By default a RATE_LIMITED
	// error with status 429 is routed through the error hooks.
	ErrorHandler func(c *handler.Context, res ratelimiter.Result) (*handler.Response, error)
	// SetHeaders adds X-RateLimit-* headers and Retry-After.
	SetHeaders bool
}

// RateLimit rejects requests over the limit of their key. It panics when no
// store is configured.
func RateLimit(cfg RateLimitConfig) handler.Middleware {
	if cfg.Store == nil {
		panic("ratelimit middleware: store is required")
	}
	if cfg.KeyExtractor == nil {
		cfg.KeyExtractor = clientKey
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(_ *handler.Context, _ ratelimiter.Result) (*handler.Response, error) {
			return nil, &handler.Error{
				Kind:    KindRateLimited,
				Status:  http.StatusTooManyRequests,
				Message: ErrRateLimited.Error(),
				Err:     ErrRateLimited,
			}
		}
	}

	return func(c *handler.Context, next handler.Next) (*handler.Response, error) {
		if cfg.Skip != nil && cfg.Skip(c) {
			return next()
		}

		res, err := cfg.Store.Allow(c, cfg.KeyExtractor(c))
		if err != nil {
			return nil, err
		}
		if cfg.SetHeaders {
			setRateLimitHeaders(c.Header(), res)
		}
		if !res.Allowed() {
			return cfg.ErrorHandler(c, res)
		}
		return next()
	}
}

func setRateLimitHeaders(h http.Header, res ratelimiter.Result) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, res.Remaining)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
	if retry := res.RetryAfter(); retry > 0 {
		// Round up so clients never retry early
		h.Set("Retry-After", strconv.Itoa(int((retry+999_999_999)/1_000_000_000)))
	}
}
