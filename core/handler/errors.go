package handler

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
)

// Kind tags an Error for the error router. Applications register their own
// kinds alongside the built-in ones.
type Kind string

const (
	KindValidation Kind = "VALIDATION"
	KindParse      Kind = "PARSE"
	KindNotFound   Kind = "NOT_FOUND"
	KindInternal   Kind = "INTERNAL_SERVER_ERROR"
	KindUnknown    Kind = "UNKNOWN"
)

// FieldError locates a single validation failure.
// Path is dotted and rooted at body, query or params, e.g. "body.user.email".
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error is the tagged error delivered to error hooks.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Fields  []FieldError
	Err     error
}

// NewError creates an error of the given kind. A zero status resolves to the
// kind's default.
func NewError(kind Kind, status int, msg string) *Error {
	if status == 0 {
		status = defaultStatus(kind)
	}
	return &Error{Kind: kind, Status: status, Message: msg}
}

// ValidationError creates a VALIDATION error listing every failed field.
func ValidationError(fields ...FieldError) *Error {
	msg := "validation failed"
	if len(fields) > 0 {
		msg = fields[0].Path + ": " + fields[0].Message
	}
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Message: msg, Fields: fields}
}

// ParseError creates a PARSE error wrapping err.
func ParseError(err error) *Error {
	return &Error{Kind: KindParse, Status: http.StatusBadRequest, Message: err.Error(), Err: err}
}

// Wrap tags err with kind. An err that already is an *Error is returned as is.
func Wrap(kind Kind, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	status := defaultStatus(kind)
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		status = sc.StatusCode()
	}
	return &Error{Kind: kind, Status: status, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status for the error.
func (e *Error) StatusCode() int {
	if e.Status == 0 {
		return defaultStatus(e.Kind)
	}
	return e.Status
}

func defaultStatus(kind Kind) int {
	switch kind {
	case KindValidation, KindParse:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// HaltError carries a response that replaces the remainder of the pipeline.
type HaltError struct {
	Response *Response
}

func (e *HaltError) Error() string {
	if e.Response == nil {
		return "halt"
	}
	return "halt: " + strconv.Itoa(e.Response.Status)
}

// Halt stops request processing with resp as the final response.
func Halt(resp *Response) error {
	return &HaltError{Response: resp}
}

// Redirect stops request processing with a redirect to location.
// A zero status means 302 Found.
func Redirect(location string, status int) error {
	if status == 0 {
		status = http.StatusFound
	}
	resp := NewResponse(status, nil)
	resp.Header.Set("Location", location)
	return Halt(resp)
}

// NotFound reports the request as unmatched, routing it through the error
// router as NOT_FOUND.
func NotFound() error {
	return NewError(KindNotFound, http.StatusNotFound, http.StatusText(http.StatusNotFound))
}

// AsHalt extracts the halt response from err.
func AsHalt(err error) (*Response, bool) {
	var h *HaltError
	if errors.As(err, &h) {
		return h.Response, true
	}
	return nil, false
}

// PanicError is a recovered panic. It is routed as an UNKNOWN error; the
// value and stack are only written to the log.
type PanicError struct {
	value any
	stack []byte
}

// NewPanicError captures v and the current goroutine stack. Call it from the
// deferred function that recovered v.
func NewPanicError(v any) *PanicError {
	return &PanicError{value: v, stack: debug.Stack()}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}

// Value returns the original panic value.
func (e *PanicError) Value() any {
	return e.value
}

// Stack returns the stack trace captured at the recovery point.
func (e *PanicError) Stack() []byte {
	return e.stack
}

// Unwrap exposes panics of error values to errors.Is and errors.As.
func (e *PanicError) Unwrap() error {
	if err, ok := e.value.(error); ok {
		return err
	}
	return nil
}
