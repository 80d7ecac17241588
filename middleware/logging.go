package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/core/logger"
)

// LoggingConfig configures the request logging middleware.
type LoggingConfig struct {
	// Skip bypasses the middleware for matching requests.
	Skip func(c *handler.Context) bool

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// LogLevel for successful requests (default: slog.LevelInfo).
	LogLevel slog.Level

	// LogRequest logs when the request starts; LogResponse when it ends.
	// Both default to true when neither is set.
	LogRequest  bool
	LogResponse bool

	// LogRequestBody logs up to MaxBodyLogSize bytes of the request body.
	LogRequestBody bool
	// LogResponseBody logs buffered response bodies. Streams are never read.
	LogResponseBody bool
	MaxBodyLogSize  int

	// LogHeaders logs request and response headers with SensitiveHeaders
	// redacted.
	LogHeaders       bool
	SensitiveHeaders []string

	// SlowRequestThreshold raises successful requests slower than this to
	// warning level (default: 5s).
	SlowRequestThreshold time.Duration

	// Component is the component attribute (default: "http").
	Component string
}

// Logging logs every request at info level.
func Logging() handler.Middleware {
	return LoggingWithConfig(LoggingConfig{})
}

// LoggingWithLogger is Logging with a custom logger.
func LoggingWithLogger(log *slog.Logger) handler.Middleware {
	return LoggingWithConfig(LoggingConfig{Logger: log})
}

// LoggingWithConfig is Logging with custom configuration.
func LoggingWithConfig(cfg LoggingConfig) handler.Middleware {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if !cfg.LogRequest && !cfg.LogResponse {
		cfg.LogRequest = true
		cfg.LogResponse = true
	}
	if cfg.MaxBodyLogSize <= 0 {
		cfg.MaxBodyLogSize = 4 << 10
	}
	if cfg.SensitiveHeaders == nil {
		cfg.SensitiveHeaders = []string{
			"Authorization",
			"Cookie",
			"Set-Cookie",
			"X-Api-Key",
			"X-Auth-Token",
			"X-Csrf-Token",
		}
	}
	if cfg.SlowRequestThreshold <= 0 {
		cfg.SlowRequestThreshold = 5 * time.Second
	}
	if cfg.Component == "" {
		cfg.Component = "http"
	}

	return func(c *handler.Context, next handler.Next) (*handler.Response, error) {
		if cfg.Skip != nil && cfg.Skip(c) {
			return next()
		}

		start := time.Now()
		req := c.Request()
		requestID, _ := GetRequestID(c)

		attrs := []slog.Attr{
			logger.Component(cfg.Component),
			logger.Event("request"),
			logger.Method(req.Method),
			logger.Path(req.URL.Path),
			logger.ClientIP(clientKey(c)),
		}
		if requestID != "" {
			attrs = append(attrs, logger.RequestID(requestID))
		}
		if req.URL.RawQuery != "" {
			attrs = append(attrs, logger.Query(req.URL.RawQuery))
		}
		if cfg.LogRequestBody && req.Body != nil {
			raw, _ := io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewReader(raw))
			attrs = append(attrs, bodyAttrs("request_body", raw, cfg.MaxBodyLogSize)...)
		}
		if cfg.LogHeaders {
			attrs = append(attrs, headerAttr("request_headers", req.Header, cfg.SensitiveHeaders))
		}
		if cfg.LogRequest {
			cfg.Logger.LogAttrs(c, cfg.LogLevel, "HTTP request started", attrs...)
		}

		resp, err := next()
		if !cfg.LogResponse {
			return resp, err
		}

		duration := time.Since(start)
		status := statusOf(resp, err)

		respAttrs := []slog.Attr{
			logger.Component(cfg.Component),
			logger.Event("response"),
			logger.Method(req.Method),
			logger.Path(req.URL.Path),
			logger.Route(c.Route()),
			logger.StatusCode(status),
			logger.Duration(duration),
		}
		if requestID != "" {
			respAttrs = append(respAttrs, logger.RequestID(requestID))
		}
		if resp != nil {
			if resp.IsStream() {
				respAttrs = append(respAttrs, slog.Bool("stream", true))
			} else {
				respAttrs = append(respAttrs, logger.BytesOut(int64(len(resp.Body))))
				if cfg.LogResponseBody {
					respAttrs = append(respAttrs, bodyAttrs("response_body", resp.Body, cfg.MaxBodyLogSize)...)
				}
			}
			if cfg.LogHeaders {
				respAttrs = append(respAttrs, headerAttr("response_headers", resp.Header, cfg.SensitiveHeaders))
			}
		}

		level := cfg.LogLevel
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
			if err != nil {
				respAttrs = append(respAttrs, logger.Error(err))
			}
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		case duration > cfg.SlowRequestThreshold:
			level = slog.LevelWarn
			respAttrs = append(respAttrs, slog.Bool("slow_request", true))
		}
		cfg.Logger.LogAttrs(c, level, "HTTP request completed", respAttrs...)

		return resp, err
	}
}

// statusOf is the status the client receives for the result of next.
// Errors not yet answered by error hooks resolve to their kind's status.
func statusOf(resp *handler.Response, err error) int {
	switch {
	case resp != nil && resp.Status != 0:
		return resp.Status
	case err != nil:
		if halt, ok := handler.AsHalt(err); ok {
			if halt != nil && halt.Status != 0 {
				return halt.Status
			}
			return http.StatusOK
		}
		return handler.Wrap(handler.KindUnknown, err).StatusCode()
	}
	return http.StatusOK
}

func bodyAttrs(key string, body []byte, limit int) []slog.Attr {
	if len(body) == 0 {
		return nil
	}
	if len(body) > limit {
		return []slog.Attr{slog.String(key, string(body[:limit])), slog.Bool(key+"_truncated", true)}
	}
	return []slog.Attr{slog.String(key, string(body))}
}

func headerAttr(key string, h http.Header, sensitive []string) slog.Attr {
	out := make(map[string]any, len(h))
	for name, values := range h {
		switch {
		case slices.ContainsFunc(sensitive, func(s string) bool { return http.CanonicalHeaderKey(s) == name }):
			out[name] = "[REDACTED]"
		case len(values) == 1:
			out[name] = values[0]
		default:
			out[name] = values
		}
	}
	return slog.Any(key, out)
}
