// Package health provides handlers for service health checks.
//
// Handlers:
//   - Liveness: process is running (no dependency checks)
//   - Readiness: all dependencies are available
//   - NoContent: returns 204 for minimal overhead
//
// Usage:
//
//	app.Get("/health/live", health.Liveness)
//	app.Get("/health/ready", health.Readiness(logger, redis.Healthcheck(client)))
//	app.Get("/ping", health.NoContent)
//
// Dependency checks follow the func(context.Context) error signature:
//
//	func checkCache(ctx context.Context) error {
//		return client.Ping(ctx).Err()
//	}
package health
