package router

import "errors"

// Registration errors. Resolve never fails; a miss is reported by its
// boolean result.
var (
	ErrInvalidMethod    = errors.New("router: invalid method")
	ErrInvalidPattern   = errors.New("router: invalid pattern")
	ErrWildcardPosition = errors.New("router: wildcard must be the last segment")
	ErrDuplicateParam   = errors.New("router: duplicate parameter name")
)
