package flowkit

import (
	"log/slog"

	"github.com/dmitrymomot/flowkit/core/response"
)

// Option configures an App during creation.
type Option func(*App)

// WithName names the app as a plugin. Hooks of named apps are deduplicated
// when the same plugin is mounted more than once.
func WithName(name string) Option {
	return func(a *App) {
		a.name = name
	}
}

// WithSeed distinguishes instances of a named plugin that must not be
// deduplicated against each other, e.g. the same plugin with different config.
func WithSeed(seed string) Option {
	return func(a *App) {
		a.seed = seed
	}
}

// WithLogger sets the logger used for error and lifecycle reporting.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithBodyLimit caps the number of request body bytes read by the parser.
func WithBodyLimit(n int64) Option {
	return func(a *App) {
		if n > 0 {
			a.bodyLimit = n
		}
	}
}

// WithStreamFormat sets the framing used for streamed handler results when
// the client does not ask for one.
func WithStreamFormat(f response.Format) Option {
	return func(a *App) {
		if f != "" {
			a.streamFormat = f
		}
	}
}

// WithResponseValidation validates handler results against the response
// schemas declared on routes.
func WithResponseValidation(enabled bool) Option {
	return func(a *App) {
		a.validateResponse = enabled
	}
}

// WithMiddleware adds middleware at creation time.
func WithMiddleware(mws ...Middleware) Option {
	return func(a *App) {
		a.Use(mws...)
	}
}
