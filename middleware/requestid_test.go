package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flowkit"
	"github.com/dmitrymomot/flowkit/middleware"
)

func serve(app *flowkit.App, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	var seen string
	app := flowkit.New().Use(middleware.RequestID())
	app.Get("/", func(c *flowkit.Context) (any, error) {
		seen, _ = middleware.GetRequestID(c)
		return nil, nil
	})

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/", nil))

	id := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	assert.Equal(t, id, seen)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestRequestIDWithConfig(t *testing.T) {
	t.Parallel()

	t.Run("keeps client id", func(t *testing.T) {
		t.Parallel()

		app := flowkit.New().Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{UseExisting: true}))
		app.Get("/", func(*flowkit.Context) (any, error) { return nil, nil })

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "client-id")
		assert.Equal(t, "client-id", serve(app, req).Header().Get("X-Request-ID"))
	})

	t.Run("ignores client id by default", func(t *testing.T) {
		t.Parallel()

		app := flowkit.New().Use(middleware.RequestID())
		app.Get("/", func(*flowkit.Context) (any, error) { return nil, nil })

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "client-id")
		assert.NotEqual(t, "client-id", serve(app, req).Header().Get("X-Request-ID"))
	})

	t.Run("custom generator and header", func(t *testing.T) {
		t.Parallel()

		app := flowkit.New().Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			HeaderName: "X-Trace",
			Generator:  func() string { return "fixed" },
		}))
		app.Get("/", func(*flowkit.Context) (any, error) { return nil, nil })

		assert.Equal(t, "fixed", serve(app, httptest.NewRequest(http.MethodGet, "/", nil)).Header().Get("X-Trace"))
	})

	t.Run("skip", func(t *testing.T) {
		t.Parallel()

		app := flowkit.New().Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
			Skip: func(c *flowkit.Context) bool { return c.Path() == "/health" },
		}))
		app.Get("/health", func(*flowkit.Context) (any, error) { return nil, nil })

		assert.Empty(t, serve(app, httptest.NewRequest(http.MethodGet, "/health", nil)).Header().Get("X-Request-ID"))
	})
}

func TestRequestIDOnNotFound(t *testing.T) {
	t.Parallel()

	app := flowkit.New().Use(middleware.RequestID())

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
