package flowkit

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/flowkit/core/binder"
	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/core/response"
)

var (
	ErrNilApp           = errors.New("cannot mount nil app")
	ErrSelfMount        = errors.New("app cannot be mounted into itself")
	ErrNilGroup         = errors.New("route group function cannot be nil")
	ErrNilHandler       = errors.New("route handler cannot be nil")
	ErrInvalidErrorKind = errors.New("error kind needs a name and a matcher")
	ErrStartHook        = errors.New("start hook failed")
	ErrStopHook         = errors.New("stop hook failed")
	ErrInvalidResponse  = errors.New("response does not match declared schema")
)

// PanicError is a recovered panic, from a pipeline stage or from a stream
// that failed after its first chunk.
type PanicError = handler.PanicError

func newPanicError(v any) *PanicError {
	return handler.NewPanicError(v)
}

// classify tags err with a kind. Errors already tagged keep their kind;
// custom kinds are checked in registration order before the built-in mapping.
func (a *App) classify(err error) *handler.Error {
	var tagged *handler.Error
	if errors.As(err, &tagged) {
		return tagged
	}

	a.mu.RLock()
	kinds := a.errorKinds
	a.mu.RUnlock()
	for _, k := range kinds {
		if k.match(err) {
			status := k.status
			if status == 0 {
				status = http.StatusInternalServerError
			}
			return &handler.Error{Kind: k.kind, Status: status, Message: err.Error(), Err: err}
		}
	}

	switch {
	case errors.Is(err, binder.ErrBodyTooLarge):
		e := handler.ParseError(err)
		e.Status = http.StatusRequestEntityTooLarge
		return e
	case errors.Is(err, binder.ErrUnsupportedMediaType):
		e := handler.ParseError(err)
		e.Status = http.StatusUnsupportedMediaType
		return e
	case errors.Is(err, binder.ErrFailedToParseJSON),
		errors.Is(err, binder.ErrFailedToParseForm),
		errors.Is(err, binder.ErrFailedToParseValues),
		errors.Is(err, binder.ErrFailedToReadBody):
		return handler.ParseError(err)
	}

	var p *PanicError
	if errors.As(err, &p) {
		return &handler.Error{Kind: handler.KindUnknown, Status: http.StatusInternalServerError, Message: err.Error(), Err: err}
	}
	return handler.Wrap(handler.KindUnknown, err)
}

type errorPayload struct {
	Kind    handler.Kind         `json:"kind"`
	Message string               `json:"message"`
	Fields  []handler.FieldError `json:"fields,omitempty"`
}

// defaultErrorResponse is used when no error hook produced a response.
// Only validation and parse failures expose their message to the client.
func defaultErrorResponse(e *handler.Error) *handler.Response {
	status := e.StatusCode()
	switch e.Kind {
	case handler.KindNotFound:
		return response.TextWithStatus(http.StatusText(http.StatusNotFound), status)
	case handler.KindValidation, handler.KindParse:
		return response.JSONWithStatus(errorPayload{Kind: e.Kind, Message: e.Message, Fields: e.Fields}, status)
	}
	if status < http.StatusBadRequest {
		status = http.StatusInternalServerError
	}
	return response.JSONWithStatus(errorPayload{Kind: e.Kind, Message: http.StatusText(status)}, status)
}

// haltResponse fills in defaults for a response carried by a halt.
func haltResponse(resp *handler.Response) *handler.Response {
	if resp == nil {
		return handler.NewResponse(http.StatusOK, nil)
	}
	if resp.Header == nil {
		resp.Header = http.Header{}
	}
	if resp.Status == 0 {
		resp.Status = http.StatusOK
	}
	return resp
}
