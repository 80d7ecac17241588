package response

import (
	"context"
	"io"
	"iter"
	"net/http"
	"reflect"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/flowkit/core/handler"
)

// Options tune Normalize.
type Options struct {
	// StreamFormat is used when the client does not ask for a specific one.
	StreamFormat Format
}

// Normalize converts a handler result into a response. r supplies the method
// for empty results, the Accept header for stream framing and the context
// bounding stream production.
func Normalize(r *http.Request, v any, opts Options) (*handler.Response, error) {
	switch val := v.(type) {
	case *handler.Response:
		if val == nil {
			return empty(r), nil
		}
		if val.Header == nil {
			val.Header = http.Header{}
		}
		if val.Status == 0 {
			val.Status = http.StatusOK
		}
		return val, nil
	case nil:
		return empty(r), nil
	case []byte:
		return Bytes(val, ""), nil
	case templ.Component:
		return renderTempl(r.Context(), val, http.StatusOK)
	case iter.Seq2[any, error]:
		return FromSeq(r.Context(), val, streamFormat(r, opts))
	case func(func(any, error) bool):
		return FromSeq(r.Context(), val, streamFormat(r, opts))
	case iter.Seq[any]:
		return FromSeq(r.Context(), Values(val), streamFormat(r, opts))
	case func(func(any) bool):
		return FromSeq(r.Context(), Values(iter.Seq[any](val)), streamFormat(r, opts))
	case <-chan any:
		return FromSeq(r.Context(), Chan(r.Context(), val), streamFormat(r, opts))
	case io.Reader:
		return FromReader(val, ""), nil
	}

	if seq, ok := chanSeq(r.Context(), v); ok {
		return FromSeq(r.Context(), seq, streamFormat(r, opts))
	}
	return encodeJSON(http.StatusOK, v)
}

func empty(r *http.Request) *handler.Response {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return handler.NewResponse(http.StatusOK, nil)
	}
	return handler.NewResponse(http.StatusNoContent, nil)
}

func streamFormat(r *http.Request, opts Options) Format {
	return NegotiateFormat(r.Header.Get("Accept"), opts.StreamFormat)
}

// chanSeq adapts typed receive channels, which cannot be matched by a type
// switch. Like Chan it stops waiting once ctx is done.
func chanSeq(ctx context.Context, v any) (iter.Seq2[any, error], bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Chan || rv.Type().ChanDir()&reflect.RecvDir == 0 {
		return nil, false
	}
	cases := []reflect.SelectCase{
		{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
		{Dir: reflect.SelectRecv, Chan: rv},
	}
	return func(yield func(any, error) bool) {
		for {
			chosen, item, ok := reflect.Select(cases)
			if chosen == 0 || !ok {
				return
			}
			if !yield(item.Interface(), nil) {
				return
			}
		}
	}, true
}
