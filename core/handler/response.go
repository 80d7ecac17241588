package handler

import (
	"context"
	"net/http"
	"sync"
)

// StreamFunc produces a streaming body. Each write call flushes one chunk to
// the client. ctx is cancelled when the client disconnects.
type StreamFunc func(ctx context.Context, write func(chunk []byte) error) error

// RenderFunc writes the response directly to the transport.
// Used for protocol upgrades such as WebSocket.
type RenderFunc func(w http.ResponseWriter, r *http.Request) error

// Response is the transport-neutral result of a request.
// Exactly one of Body, Stream or Render is meaningful.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
	Stream StreamFunc
	Render RenderFunc

	once    sync.Once
	onClose []func()
}

// NewResponse creates a buffered response.
func NewResponse(status int, body []byte) *Response {
	return &Response{Status: status, Header: http.Header{}, Body: body}
}

// NewStream creates a streaming response with the given content type.
func NewStream(status int, contentType string, fn StreamFunc) *Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &Response{Status: status, Header: h, Stream: fn}
}

// IsStream reports whether the response body is produced incrementally.
func (r *Response) IsStream() bool {
	return r != nil && r.Stream != nil
}

// OnClose registers fn to run when the response is closed.
func (r *Response) OnClose(fn func()) {
	r.onClose = append(r.onClose, fn)
}

// Close releases resources held by the response, such as a paused stream
// source. It is safe to call more than once.
func (r *Response) Close() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		for i := len(r.onClose) - 1; i >= 0; i-- {
			r.onClose[i]()
		}
	})
}

// SetHeader sets a header value, allocating the header map if needed.
func (r *Response) SetHeader(key, value string) *Response {
	if r.Header == nil {
		r.Header = http.Header{}
	}
	r.Header.Set(key, value)
	return r
}
