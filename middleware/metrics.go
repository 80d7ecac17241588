package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/flowkit/core/handler"
)

// MetricsConfig configures the Prometheus middleware.
type MetricsConfig struct {
	// Skip bypasses the middleware for matching requests.
	Skip func(c *handler.Context) bool

	// Namespace prefixes metric names (default: "flowkit").
	Namespace   string
	Subsystem   string
	ConstLabels prometheus.Labels

	// Buckets are the request duration buckets (default: prometheus.DefBuckets).
	Buckets []float64

	// Registry defaults to prometheus.DefaultRegisterer. Creating the
	// middleware twice on one registry panics.
	Registry prometheus.Registerer
}

type httpMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

func newHTTPMetrics(cfg MetricsConfig) *httpMetrics {
	factory := promauto.With(cfg.Registry)
	return &httpMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by method, route and status.",
			ConstLabels: cfg.ConstLabels,
		}, []string{"method", "route", "status"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "Time until the response is produced, in seconds.",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"method", "route"}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   cfg.Subsystem,
			Name:        "http_requests_in_flight",
			Help:        "Number of requests being processed.",
			ConstLabels: cfg.ConstLabels,
		}),
	}
}

// Metrics records request counts, durations and in-flight requests.
// Routes are labelled by pattern; unmatched requests use "unmatched".
func Metrics(cfg MetricsConfig) handler.Middleware {
	if cfg.Namespace == "" {
		cfg.Namespace = "flowkit"
	}
	if cfg.Buckets == nil {
		cfg.Buckets = prometheus.DefBuckets
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	m := newHTTPMetrics(cfg)

	return func(c *handler.Context, next handler.Next) (*handler.Response, error) {
		if cfg.Skip != nil && cfg.Skip(c) {
			return next()
		}

		m.inFlight.Inc()
		defer m.inFlight.Dec()
		start := time.Now()

		resp, err := next()

		status := statusOf(resp, err)
		route := c.Route()
		if route == "" {
			route = "unmatched"
		}
		method := c.Method()

		m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		return resp, err
	}
}

// MetricsHandler serves the metrics of g in the Prometheus exposition format.
func MetricsHandler(g prometheus.Gatherer) handler.HandlerFunc {
	h := promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	return func(*handler.Context) (any, error) {
		return &handler.Response{
			Status: http.StatusOK,
			Header: http.Header{},
			Render: func(w http.ResponseWriter, r *http.Request) error {
				h.ServeHTTP(w, r)
				return nil
			},
		}, nil
	}
}
