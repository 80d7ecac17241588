// Package logger provides structured logging utilities built on Go's standard slog package.
//
// New builds a *slog.Logger from functional options; the attribute helpers
// return an empty slog.Attr for nil or empty input so they can be passed
// unconditionally.
//
//	log := logger.New(
//		logger.WithProduction("api"),
//		logger.WithContextValue("request_id", requestIDKey),
//	)
//
//	log.Info("Request processed",
//		logger.Method("POST"),
//		logger.Path("/api/users"),
//		logger.StatusCode(201),
//		logger.Latency(time.Since(start)),
//	)
//
//	log.Error("Route failed", logger.Error(err), logger.Kind("VALIDATION"))
//
// Level and format names accepted by ParseLevel and ParseFormat are the
// values used by environment configuration (FLOWKIT_LOG_LEVEL,
// FLOWKIT_LOG_FORMAT).
package logger
