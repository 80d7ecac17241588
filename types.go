package flowkit

import "github.com/dmitrymomot/flowkit/core/handler"

// Aliases for the handler package so that applications only import flowkit.
type (
	Context     = handler.Context
	PreContext  = handler.PreContext
	Response    = handler.Response
	HandlerFunc = handler.HandlerFunc
	Middleware  = handler.Middleware
	Next        = handler.Next
	Error       = handler.Error
	ErrorKind   = handler.Kind
	FieldError  = handler.FieldError
)

// Built-in error kinds.
const (
	KindValidation = handler.KindValidation
	KindParse      = handler.KindParse
	KindNotFound   = handler.KindNotFound
	KindInternal   = handler.KindInternal
	KindUnknown    = handler.KindUnknown
)
