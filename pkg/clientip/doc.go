// Package clientip resolves the client address of a request behind proxies
// and CDNs.
//
// GetIP checks, in order, CF-Connecting-IP, DO-Connecting-IP, the first hop
// of X-Forwarded-For and X-Real-IP, then falls back to RemoteAddr. Values that
// do not parse as an IP address, or are unspecified (0.0.0.0, ::), are
// skipped.
//
//	ip := clientip.GetIP(r)
//
// The headers are trusted as sent. Deploy behind a proxy that overwrites
// them, or clients can choose their own address; this matters for rate
// limiting keys in particular.
package clientip
