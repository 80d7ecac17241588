package response

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/flowkit/core/handler"
)

// Content types set by the constructors in this package.
const (
	ContentTypeJSON   = "application/json; charset=utf-8"
	ContentTypeText   = "text/plain; charset=utf-8"
	ContentTypeHTML   = "text/html; charset=utf-8"
	ContentTypeBinary = "application/octet-stream"
	ContentTypeSSE    = "text/event-stream"
	ContentTypeNDJSON = "application/x-ndjson"
)

var (
	ErrEncode = errors.New("failed to encode response")
	ErrRender = errors.New("failed to render component")
)

// JSON creates an application/json response with 200 OK status.
func JSON(v any) *handler.Response {
	resp, err := encodeJSON(http.StatusOK, v)
	if err != nil {
		return errorBody(err)
	}
	return resp
}

// JSONWithStatus creates an application/json response with a custom status.
// A zero status resolves to 204 for nil data and 200 otherwise.
func JSONWithStatus(v any, status int) *handler.Response {
	if status == 0 {
		if v == nil {
			status = http.StatusNoContent
		} else {
			status = http.StatusOK
		}
	}

	// Handle special status codes that shouldn't have body per HTTP spec
	switch status {
	case http.StatusNoContent, http.StatusNotModified:
		resp := handler.NewResponse(status, nil)
		resp.Header.Set("Content-Type", ContentTypeJSON)
		return resp
	}

	resp, err := encodeJSON(status, v)
	if err != nil {
		return errorBody(err)
	}
	return resp
}

func encodeJSON(status int, v any) (*handler.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	// Encoder appends a newline; keep bodies byte-identical to json.Marshal
	body := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	resp := handler.NewResponse(status, body)
	resp.Header.Set("Content-Type", ContentTypeJSON)
	return resp, nil
}

// errorBody is returned by constructors that cannot report errors.
func errorBody(err error) *handler.Response {
	resp := handler.NewResponse(http.StatusInternalServerError, []byte(http.StatusText(http.StatusInternalServerError)))
	resp.Header.Set("Content-Type", ContentTypeText)
	resp.Header.Set("X-Encode-Error", err.Error())
	return resp
}

// Text creates a text/plain response with 200 OK status.
func Text(s string) *handler.Response {
	return TextWithStatus(s, http.StatusOK)
}

// TextWithStatus creates a text/plain response with a custom status.
func TextWithStatus(s string, status int) *handler.Response {
	resp := handler.NewResponse(status, []byte(s))
	resp.Header.Set("Content-Type", ContentTypeText)
	return resp
}

// HTML creates a text/html response with 200 OK status.
func HTML(html string) *handler.Response {
	resp := handler.NewResponse(http.StatusOK, []byte(html))
	resp.Header.Set("Content-Type", ContentTypeHTML)
	return resp
}

// Bytes creates a binary response with the given content type.
func Bytes(b []byte, contentType string) *handler.Response {
	if contentType == "" {
		contentType = ContentTypeBinary
	}
	resp := handler.NewResponse(http.StatusOK, b)
	resp.Header.Set("Content-Type", contentType)
	return resp
}

// Status creates an empty response with the given status.
func Status(code int) *handler.Response {
	return handler.NewResponse(code, nil)
}

// NoContent creates an empty 204 response.
func NoContent() *handler.Response {
	return Status(http.StatusNoContent)
}

// Templ renders a templ component into an HTML response. A zero status
// means 200 OK. Rendering uses ctx so components can reach request-scoped
// values; render failures produce a 500 response.
func Templ(ctx context.Context, component templ.Component, status int) *handler.Response {
	resp, err := renderTempl(ctx, component, status)
	if err != nil {
		return errorBody(err)
	}
	return resp
}

func renderTempl(ctx context.Context, component templ.Component, status int) (*handler.Response, error) {
	if status == 0 {
		status = http.StatusOK
	}
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRender, err)
	}
	resp := handler.NewResponse(status, buf.Bytes())
	resp.Header.Set("Content-Type", ContentTypeHTML)
	return resp, nil
}
