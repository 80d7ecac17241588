package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmitrymomot/flowkit"
	"github.com/dmitrymomot/flowkit/middleware"
)

func tracedApp(t *testing.T) (*flowkit.App, *tracetest.SpanRecorder) {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(t.Context()) })

	app := flowkit.New().Use(middleware.Tracing(middleware.TracingConfig{
		TracerProvider: provider,
		Propagator:     propagation.TraceContext{},
		Attributes: func(*flowkit.Context) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("service.tier", "api")}
		},
	}))
	return app, recorder
}

func attrMap(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracing(t *testing.T) {
	t.Parallel()

	app, recorder := tracedApp(t)
	var inHandler trace.SpanContext
	app.Get("/users/:id", func(c *flowkit.Context) (any, error) {
		inHandler = middleware.SpanFromContext(c).SpanContext()
		return c.Param("id"), nil
	})

	serve(app, httptest.NewRequest(http.MethodGet, "/users/7", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "GET /users/:id", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())
	assert.Equal(t, span.SpanContext().SpanID(), inHandler.SpanID())
	assert.Equal(t, codes.Unset, span.Status().Code)

	attrs := attrMap(span)
	assert.Equal(t, "/users/:id", attrs["http.route"].AsString())
	assert.Equal(t, "/users/7", attrs["url.path"].AsString())
	assert.EqualValues(t, http.StatusOK, attrs["http.response.status_code"].AsInt64())
	assert.Equal(t, "api", attrs["service.tier"].AsString())
}

func TestTracingParentAndErrors(t *testing.T) {
	t.Parallel()

	app, recorder := tracedApp(t)
	app.Get("/fail", func(*flowkit.Context) (any, error) { return nil, errors.New("boom") })

	req := httptest.NewRequest(http.MethodGet, "/fail", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	serve(app, req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext().TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent().SpanID().String())
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.EqualValues(t, http.StatusInternalServerError, attrMap(span)["http.response.status_code"].AsInt64())
}

func TestTracingUnmatched(t *testing.T) {
	t.Parallel()

	app, recorder := tracedApp(t)

	serve(app, httptest.NewRequest(http.MethodPost, "/nope", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP POST", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}
