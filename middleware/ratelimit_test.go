package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dmitrymomot/flowkit"
	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/middleware"
	"github.com/dmitrymomot/flowkit/pkg/ratelimiter"
)

func newMemoryStore(t *testing.T, limit int) *ratelimiter.MemoryStore {
	t.Helper()
	store, err := ratelimiter.NewMemoryStore(ratelimiter.Config{Limit: limit, Window: time.Minute})
	require.NoError(t, err)
	return store
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	app := flowkit.New().Use(middleware.RateLimit(middleware.RateLimitConfig{
		Store:      newMemoryStore(t, 2),
		SetHeaders: true,
	}))
	app.Get("/", func(*flowkit.Context) (any, error) { return "ok", nil })

	for i := range 2 {
		rec := serve(app, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(1-i), rec.Header().Get("X-RateLimit-Remaining"))
		assert.Empty(t, rec.Header().Get("Retry-After"))
	}

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, string(middleware.KindRateLimited), gjson.Get(rec.Body.String(), "kind").String())
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))

	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, retry)
	assert.LessOrEqual(t, retry, 30)
}

func TestRateLimitPerKey(t *testing.T) {
	t.Parallel()

	app := flowkit.New().Use(middleware.RateLimit(middleware.RateLimitConfig{
		Store: newMemoryStore(t, 1),
		KeyExtractor: func(c *flowkit.Context) string {
			return c.Request().Header.Get("X-Api-Key")
		},
	}))
	app.Get("/", func(*flowkit.Context) (any, error) { return "ok", nil })

	request := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Api-Key", key)
		return serve(app, req).Code
	}

	assert.Equal(t, http.StatusOK, request("a"))
	assert.Equal(t, http.StatusOK, request("b"))
	assert.Equal(t, http.StatusTooManyRequests, request("a"))
}

func TestRateLimitErrorHook(t *testing.T) {
	t.Parallel()

	app := flowkit.New().Use(middleware.RateLimit(middleware.RateLimitConfig{Store: newMemoryStore(t, 1)}))
	app.OnErrorKind(middleware.KindRateLimited, func(*flowkit.Context, *flowkit.Error) (any, error) {
		return map[string]string{"error": "slow down"}, nil
	})
	app.Get("/", func(*flowkit.Context) (any, error) { return "ok", nil })

	serve(app, httptest.NewRequest(http.MethodGet, "/", nil))
	rec := serve(app, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"slow down"}`, rec.Body.String())
}

func TestRateLimitCustomErrorHandler(t *testing.T) {
	t.Parallel()

	app := flowkit.New().Use(middleware.RateLimit(middleware.RateLimitConfig{
		Store: newMemoryStore(t, 1),
		ErrorHandler: func(_ *flowkit.Context, res ratelimiter.Result) (*flowkit.Response, error) {
			return handler.NewResponse(http.StatusServiceUnavailable, []byte("busy")), nil
		},
	}))
	app.Get("/", func(*flowkit.Context) (any, error) { return "ok", nil })

	serve(app, httptest.NewRequest(http.MethodGet, "/", nil))
	rec := serve(app, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "busy", rec.Body.String())
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string) (ratelimiter.Result, error) {
	return ratelimiter.Result{}, ratelimiter.ErrStoreUnavailable
}

func TestRateLimitStoreFailure(t *testing.T) {
	t.Parallel()

	var seen error
	app := flowkit.New().Use(middleware.RateLimit(middleware.RateLimitConfig{Store: failingStore{}}))
	app.OnError(func(_ *flowkit.Context, e *flowkit.Error) (any, error) {
		seen = e
		return nil, nil
	})
	app.Get("/", func(*flowkit.Context) (any, error) { return "ok", nil })

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.True(t, errors.Is(seen, ratelimiter.ErrStoreUnavailable))
}

func TestRateLimitRequiresStore(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		middleware.RateLimit(middleware.RateLimitConfig{})
	})
}
