package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flowkit/core/handler"
)

type requestIDContextKey struct{}

// RequestIDConfig configures the request ID middleware.
type RequestIDConfig struct {
	// Skip bypasses the middleware for matching requests.
	Skip func(c *handler.Context) bool
	// Generator creates new request IDs (default: UUID v4).
	Generator func() string
	// HeaderName is the request and response header (default: "X-Request-ID").
	HeaderName string
	// UseExisting keeps an ID sent by the client.
	UseExisting bool
}

// RequestID assigns a UUID to every request and echoes it in the response.
func RequestID() handler.Middleware {
	return RequestIDWithConfig(RequestIDConfig{})
}

// RequestIDWithConfig is RequestID with custom configuration.
func RequestIDWithConfig(cfg RequestIDConfig) handler.Middleware {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-Request-ID"
	}
	if cfg.Generator == nil {
		cfg.Generator = uuid.NewString
	}

	return func(c *handler.Context, next handler.Next) (*handler.Response, error) {
		if cfg.Skip != nil && cfg.Skip(c) {
			return next()
		}

		var id string
		if cfg.UseExisting {
			id = c.Request().Header.Get(cfg.HeaderName)
		}
		if id == "" {
			id = cfg.Generator()
		}

		c.SetValue(requestIDContextKey{}, id)
		// Context headers reach error and halt responses too
		c.Header().Set(cfg.HeaderName, id)
		return next()
	}
}

// GetRequestID returns the ID assigned by RequestID.
func GetRequestID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(requestIDContextKey{}).(string)
	return id, ok
}
