package middleware_test

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dmitrymomot/flowkit"
	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/middleware"
)

// syncBuffer guards a buffer shared by the logger and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Split(strings.TrimSpace(b.buf.String()), "\n")
}

func newLogger(buf *syncBuffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// completed returns the "HTTP request completed" entry.
func completed(t *testing.T, buf *syncBuffer) gjson.Result {
	t.Helper()
	for _, line := range buf.lines() {
		if gjson.Get(line, "msg").String() == "HTTP request completed" {
			return gjson.Parse(line)
		}
	}
	require.Fail(t, "no completion entry logged")
	return gjson.Result{}
}

func TestLogging(t *testing.T) {
	t.Parallel()

	buf := &syncBuffer{}
	app := flowkit.New().Use(middleware.RequestID(), middleware.LoggingWithLogger(newLogger(buf)))
	app.Get("/users/:id", func(c *flowkit.Context) (any, error) {
		return map[string]string{"id": c.Param("id")}, nil
	})

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/users/42?full=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	lines := buf.lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "HTTP request started", gjson.Get(lines[0], "msg").String())
	assert.Equal(t, "full=1", gjson.Get(lines[0], "query").String())

	entry := completed(t, buf)
	assert.Equal(t, "INFO", entry.Get("level").String())
	assert.Equal(t, "/users/:id", entry.Get("route").String())
	assert.Equal(t, "/users/42", entry.Get("path").String())
	assert.EqualValues(t, http.StatusOK, entry.Get("status_code").Int())
	assert.Equal(t, rec.Header().Get("X-Request-ID"), entry.Get("request_id").String())
	assert.EqualValues(t, len(`{"id":"42"}`), entry.Get("bytes_out").Int())
}

func TestLoggingLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		level  string
		status int64
	}{
		{name: "not found", target: "/missing", level: "WARN", status: http.StatusNotFound},
		{name: "failure", target: "/fail", level: "ERROR", status: http.StatusInternalServerError},
		{name: "success", target: "/ok", level: "INFO", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			buf := &syncBuffer{}
			app := flowkit.New(flowkit.WithLogger(slog.New(slog.DiscardHandler))).
				Use(middleware.LoggingWithConfig(middleware.LoggingConfig{Logger: newLogger(buf), LogResponse: true}))
			app.Get("/ok", func(*flowkit.Context) (any, error) { return "ok", nil })
			app.Get("/fail", func(*flowkit.Context) (any, error) { return nil, errors.New("boom") })

			serve(app, httptest.NewRequest(http.MethodGet, tt.target, nil))

			lines := buf.lines()
			require.Len(t, lines, 1, "request start must not be logged")
			entry := completed(t, buf)
			assert.Equal(t, tt.level, entry.Get("level").String())
			assert.Equal(t, tt.status, entry.Get("status_code").Int())
		})
	}
}

func TestLoggingMiddlewareError(t *testing.T) {
	t.Parallel()

	buf := &syncBuffer{}
	deny := func(*flowkit.Context, flowkit.Next) (*flowkit.Response, error) {
		return nil, handler.NewError("LOCKED", http.StatusLocked, "locked")
	}
	app := flowkit.New(flowkit.WithLogger(slog.New(slog.DiscardHandler))).
		Use(middleware.LoggingWithLogger(newLogger(buf)), deny)
	app.Get("/", func(*flowkit.Context) (any, error) { return "ok", nil })

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusLocked, rec.Code)
	entry := completed(t, buf)
	assert.EqualValues(t, http.StatusLocked, entry.Get("status_code").Int())
	assert.Equal(t, "WARN", entry.Get("level").String())
}

func TestLoggingBodiesAndHeaders(t *testing.T) {
	t.Parallel()

	buf := &syncBuffer{}
	app := flowkit.New().Use(middleware.LoggingWithConfig(middleware.LoggingConfig{
		Logger:          newLogger(buf),
		LogRequestBody:  true,
		LogResponseBody: true,
		LogHeaders:      true,
		MaxBodyLogSize:  8,
	}))
	app.Post("/echo", func(c *flowkit.Context) (any, error) {
		return string(c.RawBody()), nil
	})

	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(`{"name":"Ann"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer secret")
	rec := serve(app, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Ann", "handler must still see the body")

	lines := buf.lines()
	started := gjson.Parse(lines[0])
	assert.Equal(t, `{"name":`, started.Get("request_body").String())
	assert.True(t, started.Get("request_body_truncated").Bool())
	assert.Equal(t, "[REDACTED]", started.Get("request_headers.Authorization").String())

	entry := completed(t, buf)
	assert.True(t, entry.Get("response_body_truncated").Bool())
}
