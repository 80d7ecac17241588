// Package middleware provides onion middleware for flowkit applications:
// request IDs, client IP resolution, request logging, CORS, rate limiting,
// Prometheus metrics and OpenTelemetry tracing.
//
// Every middleware has the handler.Middleware signature and comes with a
// default constructor plus a configuration struct. Each configuration accepts
// a Skip function that bypasses the middleware for matching requests.
//
//	app := flowkit.New()
//	app.Use(
//		middleware.RequestID(),
//		middleware.ClientIP(),
//		middleware.Logging(),
//		middleware.CORS(),
//	)
//
// Middleware that adds response headers writes them to the context header set
// rather than to the returned response, so the headers also reach clients on
// error and halt responses.
//
// # Rate limiting
//
// RateLimit works with any ratelimiter.Store. Rejected requests become a
// RATE_LIMITED error with status 429, which applications can answer with
// their own error hooks:
//
//	store, _ := ratelimiter.NewMemoryStore(ratelimiter.Config{Limit: 100, Window: time.Minute})
//	app.Use(middleware.RateLimit(middleware.RateLimitConfig{Store: store, SetHeaders: true}))
//
// # Observability
//
// Metrics labels requests by route pattern, never by raw path. Expose the
// collected metrics with MetricsHandler:
//
//	reg := prometheus.NewRegistry()
//	app.Use(middleware.Metrics(middleware.MetricsConfig{Registry: reg}))
//	app.Get("/metrics", middleware.MetricsHandler(reg))
//
// Tracing starts a server span per request and replaces the request context
// so handlers can create child spans from c.
package middleware
