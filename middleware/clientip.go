package middleware

import (
	"context"
	"net/http"

	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/pkg/clientip"
)

type clientIPContextKey struct{}

// ClientIPConfig configures the client IP middleware.
type ClientIPConfig struct {
	// Skip bypasses the middleware for matching requests.
	Skip func(c *handler.Context) bool
	// HeaderName is the response header used when StoreInHeader is set
	// (default: "X-Client-IP").
	HeaderName string
	// StoreInHeader echoes the address in the response.
	StoreInHeader bool
	// ValidateFunc rejects requests by address. Its error is reported as a
	// FORBIDDEN error.
	ValidateFunc func(c *handler.Context, ip string) error
}

// KindForbidden tags requests rejected by ClientIPConfig.ValidateFunc.
const KindForbidden handler.Kind = "FORBIDDEN"

// ClientIP resolves the client address and stores it in the context.
func ClientIP() handler.Middleware {
	return ClientIPWithConfig(ClientIPConfig{})
}

// ClientIPWithConfig is ClientIP with custom configuration.
func ClientIPWithConfig(cfg ClientIPConfig) handler.Middleware {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "X-Client-IP"
	}

	return func(c *handler.Context, next handler.Next) (*handler.Response, error) {
		if cfg.Skip != nil && cfg.Skip(c) {
			return next()
		}

		ip := clientip.GetIP(c.Request())
		c.SetValue(clientIPContextKey{}, ip)

		if cfg.ValidateFunc != nil {
			if err := cfg.ValidateFunc(c, ip); err != nil {
				return nil, &handler.Error{Kind: KindForbidden, Status: http.StatusForbidden, Message: err.Error(), Err: err}
			}
		}
		if cfg.StoreInHeader {
			c.Header().Set(cfg.HeaderName, ip)
		}
		return next()
	}
}

// GetClientIP returns the address stored by ClientIP.
func GetClientIP(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(clientIPContextKey{}).(string)
	return ip, ok
}

// clientKey is the default rate limit and logging key.
func clientKey(c *handler.Context) string {
	if ip, ok := GetClientIP(c); ok {
		return ip
	}
	return clientip.GetIP(c.Request())
}
