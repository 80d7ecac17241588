package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/flowkit/core/handler"
)

const defaultTracerName = "github.com/dmitrymomot/flowkit"

// TracingConfig configures the OpenTelemetry middleware.
type TracingConfig struct {
	// Skip bypasses the middleware for matching requests.
	Skip func(c *handler.Context) bool
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
	// Propagator extracts the parent span from request headers
	// (default: the global text map propagator).
	Propagator propagation.TextMapPropagator
	// TracerName defaults to the module path.
	TracerName string
	// Attributes adds custom span attributes.
	Attributes func(c *handler.Context) []attribute.KeyValue
}

// Tracing starts a server span per request. The span is renamed to the
// matched route once routing is done and is available to handlers through
// the request context.
func Tracing(cfg TracingConfig) handler.Middleware {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}
	if cfg.TracerName == "" {
		cfg.TracerName = defaultTracerName
	}
	tracer := cfg.TracerProvider.Tracer(cfg.TracerName)

	return func(c *handler.Context, next handler.Next) (*handler.Response, error) {
		if cfg.Skip != nil && cfg.Skip(c) {
			return next()
		}

		req := c.Request()
		parent := cfg.Propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))

		attrs := []attribute.KeyValue{
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
		}
		if cfg.Attributes != nil {
			attrs = append(attrs, cfg.Attributes(c)...)
		}

		ctx, span := tracer.Start(parent, spanName(req.Method, ""),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...),
		)
		defer span.End()
		c.SetContext(ctx)

		resp, err := next()

		if route := c.Route(); route != "" {
			span.SetName(spanName(req.Method, route))
			span.SetAttributes(attribute.String("http.route", route))
		}

		if _, halted := handler.AsHalt(err); err != nil && !halted {
			span.RecordError(err)
		}
		status := statusOf(resp, err)
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		return resp, err
	}
}

// SpanFromContext returns the request span started by Tracing.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

func spanName(method, route string) string {
	if route == "" {
		return "HTTP " + strings.ToUpper(method)
	}
	return strings.ToUpper(method) + " " + route
}
