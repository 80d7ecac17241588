package response

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/dmitrymomot/flowkit/core/handler"
)

// Format selects how sequence items are framed on the wire.
type Format string

const (
	FormatSSE    Format = "sse"
	FormatNDJSON Format = "ndjson"
)

var ErrUnknownFormat = errors.New("unknown stream format")

// ParseFormat converts a configuration value into a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatSSE:
		return FormatSSE, nil
	case FormatNDJSON:
		return FormatNDJSON, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// NegotiateFormat picks NDJSON when the Accept header asks for it and
// falls back to def otherwise.
func NegotiateFormat(accept string, def Format) Format {
	switch {
	case strings.Contains(accept, ContentTypeNDJSON), strings.Contains(accept, "application/jsonl"):
		return FormatNDJSON
	case strings.Contains(accept, ContentTypeSSE):
		return FormatSSE
	}
	if def == "" {
		return FormatSSE
	}
	return def
}

// Seq adapts a typed fallible sequence for streaming.
func Seq[T any](seq iter.Seq2[T, error]) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for v, err := range seq {
			if !yield(v, err) {
				return
			}
		}
	}
}

// Values adapts a typed infallible sequence for streaming.
func Values[T any](seq iter.Seq[T]) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for v := range seq {
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Chan adapts a receive channel for streaming. The stream ends when the
// channel is closed or ctx is done, even while waiting for the next item.
func Chan[T any](ctx context.Context, ch <-chan T) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-ch:
				if !ok || !yield(v, nil) {
					return
				}
			}
		}
	}
}

// FromSeq creates a streaming response from seq. The first item is pulled
// immediately: if the producer fails before yielding, the error is returned
// instead of a response. Pulling stops when ctx is cancelled, the client
// disconnects, or the response is closed.
//
// seq must watch ctx itself if it can block between items; Chan does. A
// producer that panics after the first chunk terminates the stream with a
// *handler.PanicError.
func FromSeq(ctx context.Context, seq iter.Seq2[any, error], format Format) (*handler.Response, error) {
	if format == "" {
		format = FormatSSE
	}
	next, stop := iter.Pull2(seq)

	first, err, ok := next()
	if err != nil {
		stop()
		return nil, err
	}
	if ctx.Err() != nil {
		stop()
		return nil, ctx.Err()
	}

	contentType := ContentTypeSSE
	if format == FormatNDJSON {
		contentType = ContentTypeNDJSON
	}

	resp := handler.NewStream(http.StatusOK, contentType, func(ctx context.Context, write func([]byte) error) (err error) {
		defer stop()
		defer func() {
			if v := recover(); v != nil {
				err = handler.NewPanicError(v)
			}
		}()
		item, more := first, ok
		for more {
			if err := ctx.Err(); err != nil {
				return nil
			}
			chunk, err := EncodeChunk(format, item)
			if err != nil {
				return err
			}
			if err := write(chunk); err != nil {
				return err
			}

			var perr error
			item, perr, more = next()
			if perr != nil {
				// Bytes are already flushed; terminate the stream
				return perr
			}
		}
		return nil
	})
	resp.Header.Set("Cache-Control", "no-cache")
	if format == FormatSSE {
		resp.Header.Set("X-Accel-Buffering", "no")
	}
	resp.OnClose(stop)
	return resp, nil
}

// EncodeChunk frames one sequence item.
// SSE frames carry strings and byte slices verbatim and JSON for anything
// else; NDJSON frames are always JSON.
func EncodeChunk(format Format, v any) ([]byte, error) {
	if format == FormatNDJSON {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrEncode, err)
		}
		return append(b, '\n'), nil
	}

	var buf bytes.Buffer
	if err := writeSSEEvent(&buf, v, ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeSSEEvent writes a Server-Sent Event to the writer.
func writeSSEEvent(w io.Writer, data any, eventName string) error {
	if eventName != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", eventName); err != nil {
			return err
		}
	}

	var dataStr string
	switch v := data.(type) {
	case string:
		dataStr = v
	case []byte:
		dataStr = string(v)
	default:
		jsonData, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEncode, err)
		}
		dataStr = string(jsonData)
	}

	// Multi-line payloads need one data field per line
	for line := range strings.SplitSeq(dataStr, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", line); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Event creates a single named SSE frame, useful inside custom streams.
func Event(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeSSEEvent(&buf, data, name); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const readerChunkSize = 32 << 10

// FromReader streams r in chunks. r is closed with the response when it
// implements io.Closer.
func FromReader(r io.Reader, contentType string) *handler.Response {
	if contentType == "" {
		contentType = ContentTypeBinary
	}
	resp := handler.NewStream(http.StatusOK, contentType, func(ctx context.Context, write func([]byte) error) error {
		buf := make([]byte, readerChunkSize)
		for {
			if err := ctx.Err(); err != nil {
				return nil
			}
			n, err := r.Read(buf)
			if n > 0 {
				if werr := write(buf[:n]); werr != nil {
					return werr
				}
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
		}
	})
	if c, ok := r.(io.Closer); ok {
		resp.OnClose(func() { _ = c.Close() })
	}
	return resp
}
