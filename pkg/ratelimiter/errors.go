package ratelimiter

import "errors"

var (
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrAlreadyStarted   = errors.New("memory store already started")
	ErrNotStarted       = errors.New("memory store not started")
	ErrShutdownTimeout  = errors.New("memory store shutdown timeout exceeded")
)
