package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/core/logger"
	"github.com/dmitrymomot/flowkit/core/response"
)

// Readiness verifies all service dependencies are functioning.
// Returns "READY" if all checks pass, 503 Service Unavailable if any fail.
//
// Example:
//
//	app.Get("/health/ready", health.Readiness(log, redis.Healthcheck(client)))
func Readiness(log *slog.Logger, fn ...func(context.Context) error) handler.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *handler.Context) (any, error) {
		for _, f := range fn {
			if err := f(c); err != nil {
				log.ErrorContext(c, "Readiness check failed", logger.Component("health"), logger.Error(err))
				return response.TextWithStatus(http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable), nil
			}
		}

		return response.Text("READY"), nil
	}
}
