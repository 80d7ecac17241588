package redis

import "errors"

var (
	ErrEmptyConnectionURL           = errors.New("redis: empty connection URL")
	ErrFailedToParseRedisConnString = errors.New("redis: failed to parse connection string")
	// ErrRedisNotReady is returned by Connect once every ping attempt failed.
	ErrRedisNotReady     = errors.New("redis: not ready within the retry budget")
	ErrHealthcheckFailed = errors.New("redis: healthcheck failed")
)
