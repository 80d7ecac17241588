package logger

import (
	"log/slog"
	"strconv"
	"time"
)

// Helpers that take optional values return the empty Attr for zero input,
// which slog handlers drop. Callers never need nil checks.

// Error is the error under the key "error".
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Errors groups the non-nil errors under "errors", keyed by argument index.
func Errors(errs ...error) slog.Attr {
	var as []slog.Attr
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Kind is an error router kind such as VALIDATION.
func Kind(kind string) slog.Attr {
	if kind == "" {
		return slog.Attr{}
	}
	return slog.String("kind", kind)
}

// Stack is a captured goroutine stack, e.g. from a recovered panic.
func Stack(stack []byte) slog.Attr {
	if len(stack) == 0 {
		return slog.Attr{}
	}
	return slog.String("stack", string(stack))
}

// Duration is the time a request or operation took.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration("duration", d)
}

// Latency is Duration under the key used by access logs.
func Latency(d time.Duration) slog.Attr {
	return slog.Duration("latency", d)
}

// Elapsed is the time since start.
func Elapsed(start time.Time) slog.Attr {
	return slog.Duration("elapsed", time.Since(start))
}

// RequestID is the request correlation id.
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Method is the HTTP method.
func Method(method string) slog.Attr {
	return slog.String("method", method)
}

// Path is the request path as received.
func Path(path string) slog.Attr {
	return slog.String("path", path)
}

// Query is the raw query string.
func Query(raw string) slog.Attr {
	if raw == "" {
		return slog.Attr{}
	}
	return slog.String("query", raw)
}

// Route is the matched route pattern. Unmatched requests have none.
func Route(pattern string) slog.Attr {
	if pattern == "" {
		return slog.Attr{}
	}
	return slog.String("route", pattern)
}

// StatusCode is the response status.
func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

// ClientIP is the resolved client address.
func ClientIP(ip string) slog.Attr {
	if ip == "" {
		return slog.Attr{}
	}
	return slog.String("client_ip", ip)
}

// BytesOut is the size of a buffered response body.
func BytesOut(n int64) slog.Attr {
	return slog.Int64("bytes_out", n)
}

// Component names the subsystem emitting the record.
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event names the lifecycle moment, e.g. "start" or "response".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Count is an integer under key.
func Count(key string, n int) slog.Attr {
	return slog.Int(key, n)
}
