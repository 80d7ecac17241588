package binder

import "errors"

// Error variables define common binding failures that can occur during request processing.
var (
	// ErrUnsupportedMediaType indicates the body kind cannot be parsed by the binder.
	ErrUnsupportedMediaType = errors.New("unsupported media type")

	// ErrFailedToParseJSON indicates the request body contains invalid JSON
	// or doesn't match the target struct schema.
	ErrFailedToParseJSON = errors.New("failed to parse JSON request body")

	// ErrFailedToParseForm indicates form data parsing failed due to malformed
	// multipart boundaries or invalid URL-encoded data.
	ErrFailedToParseForm = errors.New("failed to parse form data")

	// ErrFailedToParseValues indicates query or path parameter conversion failed.
	ErrFailedToParseValues = errors.New("failed to parse parameters")

	// ErrBodyTooLarge indicates the body exceeded the configured limit.
	ErrBodyTooLarge = errors.New("request body too large")

	// ErrFailedToReadBody indicates the body stream failed mid-read.
	ErrFailedToReadBody = errors.New("failed to read request body")
)
