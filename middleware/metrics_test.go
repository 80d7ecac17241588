package middleware_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flowkit"
	"github.com/dmitrymomot/flowkit/middleware"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	app := flowkit.New().Use(middleware.Metrics(middleware.MetricsConfig{
		Registry: reg,
		Skip:     func(c *flowkit.Context) bool { return c.Path() == "/metrics" },
	}))
	app.Get("/metrics", middleware.MetricsHandler(reg))
	app.Get("/users/:id", func(c *flowkit.Context) (any, error) { return c.Param("id"), nil })
	app.Get("/fail", func(*flowkit.Context) (any, error) { return nil, errors.New("boom") })

	serve(app, httptest.NewRequest(http.MethodGet, "/users/1", nil))
	serve(app, httptest.NewRequest(http.MethodGet, "/users/2", nil))
	serve(app, httptest.NewRequest(http.MethodGet, "/fail", nil))
	serve(app, httptest.NewRequest(http.MethodGet, "/nope", nil))

	rec := serve(app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	assert.Contains(t, body, `flowkit_http_requests_total{method="GET",route="/users/:id",status="200"} 2`)
	assert.Contains(t, body, `flowkit_http_requests_total{method="GET",route="/fail",status="500"} 1`)
	assert.Contains(t, body, `flowkit_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
	assert.Contains(t, body, `flowkit_http_request_duration_seconds_count{method="GET",route="/users/:id"} 2`)
	assert.Contains(t, body, `flowkit_http_requests_in_flight 0`)
	assert.NotContains(t, body, `route="/metrics"`)
}

func TestMetricsNamespace(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	app := flowkit.New().Use(middleware.Metrics(middleware.MetricsConfig{
		Registry:    reg,
		Namespace:   "shop",
		Subsystem:   "api",
		ConstLabels: prometheus.Labels{"service": "orders"},
	}))
	app.Get("/", func(*flowkit.Context) (any, error) { return "ok", nil })

	serve(app, httptest.NewRequest(http.MethodGet, "/", nil))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
		for _, m := range f.GetMetric() {
			var service string
			for _, l := range m.GetLabel() {
				if l.GetName() == "service" {
					service = l.GetValue()
				}
			}
			assert.Equal(t, "orders", service)
		}
	}
	assert.ElementsMatch(t, []string{
		"shop_api_http_requests_total",
		"shop_api_http_request_duration_seconds",
		"shop_api_http_requests_in_flight",
	}, names)
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	middleware.Metrics(middleware.MetricsConfig{Registry: reg})

	assert.Panics(t, func() {
		middleware.Metrics(middleware.MetricsConfig{Registry: reg})
	})
}
