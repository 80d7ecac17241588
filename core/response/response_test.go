package response_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/core/response"
)

func normalize(t *testing.T, req *http.Request, v any) *handler.Response {
	t.Helper()
	resp, err := response.Normalize(req, v, response.Options{})
	require.NoError(t, err)
	return resp
}

func write(t *testing.T, req *http.Request, resp *handler.Response) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, response.Write(rec, req, resp))
	return rec
}

func TestNormalize_Values(t *testing.T) {
	t.Parallel()

	get := httptest.NewRequest(http.MethodGet, "/", nil)
	post := httptest.NewRequest(http.MethodPost, "/", nil)

	t.Run("object as json", func(t *testing.T) {
		t.Parallel()
		resp := normalize(t, get, map[string]any{"ok": true})
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, response.ContentTypeJSON, resp.Header.Get("Content-Type"))
		assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	})

	t.Run("string as json", func(t *testing.T) {
		t.Parallel()
		resp := normalize(t, get, "hi")
		assert.Equal(t, `"hi"`, string(resp.Body))
	})

	t.Run("number as json", func(t *testing.T) {
		t.Parallel()
		resp := normalize(t, get, 42)
		assert.Equal(t, `42`, string(resp.Body))
	})

	t.Run("nil on GET", func(t *testing.T) {
		t.Parallel()
		resp := normalize(t, get, nil)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Empty(t, resp.Body)
	})

	t.Run("nil on POST", func(t *testing.T) {
		t.Parallel()
		resp := normalize(t, post, nil)
		assert.Equal(t, http.StatusNoContent, resp.Status)
	})

	t.Run("response passes through", func(t *testing.T) {
		t.Parallel()
		in := response.TextWithStatus("teapot", http.StatusTeapot)
		resp := normalize(t, get, in)
		assert.Same(t, in, resp)
	})

	t.Run("bytes", func(t *testing.T) {
		t.Parallel()
		resp := normalize(t, get, []byte{1, 2})
		assert.Equal(t, response.ContentTypeBinary, resp.Header.Get("Content-Type"))
		assert.Equal(t, []byte{1, 2}, resp.Body)
	})

	t.Run("reader streams", func(t *testing.T) {
		t.Parallel()
		resp := normalize(t, get, strings.NewReader("streamed body"))
		require.True(t, resp.IsStream())
		rec := write(t, get, resp)
		assert.Equal(t, "streamed body", rec.Body.String())
	})

	t.Run("templ component", func(t *testing.T) {
		t.Parallel()
		comp := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			_, err := io.WriteString(w, "<h1>hello</h1>")
			return err
		})
		resp := normalize(t, get, comp)
		assert.Equal(t, response.ContentTypeHTML, resp.Header.Get("Content-Type"))
		assert.Equal(t, "<h1>hello</h1>", string(resp.Body))
	})

	t.Run("unencodable value", func(t *testing.T) {
		t.Parallel()
		_, err := response.Normalize(get, map[string]any{"fn": func() {}}, response.Options{})
		assert.ErrorIs(t, err, response.ErrEncode)
	})
}

func numbers(n int) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		for i := 1; i <= n; i++ {
			if !yield(i, nil) {
				return
			}
		}
	}
}

func TestNormalize_StreamSSE(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := normalize(t, req, response.Seq(numbers(5)))
	require.True(t, resp.IsStream())
	assert.Equal(t, response.ContentTypeSSE, resp.Header.Get("Content-Type"))

	rec := write(t, req, resp)
	chunks := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n\n"), "\n\n")
	assert.Equal(t, []string{"data: 1", "data: 2", "data: 3", "data: 4", "data: 5"}, chunks)
}

func TestNormalize_StreamNDJSON(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", response.ContentTypeNDJSON)

	seq := func(yield func(any) bool) {
		for _, v := range []any{map[string]int{"n": 1}, map[string]int{"n": 2}} {
			if !yield(v) {
				return
			}
		}
	}
	resp := normalize(t, req, seq)
	assert.Equal(t, response.ContentTypeNDJSON, resp.Header.Get("Content-Type"))

	rec := write(t, req, resp)
	assert.Equal(t, "{\"n\":1}\n{\"n\":2}\n", rec.Body.String())
}

func TestNormalize_StreamConfiguredFormat(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := response.Normalize(req, response.Seq(numbers(2)), response.Options{StreamFormat: response.FormatNDJSON})
	require.NoError(t, err)
	rec := write(t, req, resp)
	assert.Equal(t, "1\n2\n", rec.Body.String())
}

func TestNormalize_StreamChannel(t *testing.T) {
	t.Parallel()

	ch := make(chan string, 3)
	ch <- "a"
	ch <- "b"
	close(ch)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := normalize(t, req, (<-chan string)(ch))
	rec := write(t, req, resp)
	assert.Equal(t, "data: a\n\ndata: b\n\n", rec.Body.String())
}

func TestNormalize_StreamErrorBeforeFirstChunk(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	released := false
	seq := func(yield func(any, error) bool) {
		defer func() { released = true }()
		yield(nil, boom)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := response.Normalize(req, iter.Seq2[any, error](seq), response.Options{})
	assert.ErrorIs(t, err, boom)
	assert.True(t, released)
}

func TestNormalize_StreamErrorAfterFirstChunk(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	seq := func(yield func(any, error) bool) {
		if !yield(1, nil) {
			return
		}
		yield(nil, boom)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := normalize(t, req, iter.Seq2[any, error](seq))

	rec := httptest.NewRecorder()
	err := response.Write(rec, req, resp)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data: 1\n\n", rec.Body.String())
}

func TestNormalize_StreamCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	produced := 0
	released := false
	seq := func(yield func(any, error) bool) {
		defer func() { released = true }()
		for i := 0; ; i++ {
			produced++
			if !yield(i, nil) {
				return
			}
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	resp := normalize(t, req, iter.Seq2[any, error](seq))

	writes := 0
	err := resp.Stream(ctx, func([]byte) error {
		writes++
		if writes == 3 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)
	resp.Close()

	assert.Equal(t, 3, writes)
	assert.True(t, released)
	assert.LessOrEqual(t, produced, 4)
}

func TestNormalize_StreamCancellationUnblocksChannel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ch   func() any
	}{
		{"untyped", func() any {
			ch := make(chan any, 1)
			ch <- "first"
			return (<-chan any)(ch)
		}},
		{"typed", func() any {
			ch := make(chan string, 1)
			ch <- "first"
			return (<-chan string)(ch)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
			resp := normalize(t, req, tt.ch())
			defer resp.Close()

			done := make(chan error, 1)
			go func() {
				// The producer never closes the channel; only the abort can end the stream.
				done <- resp.Stream(ctx, func([]byte) error {
					cancel()
					return nil
				})
			}()

			select {
			case err := <-done:
				assert.NoError(t, err)
			case <-time.After(2 * time.Second):
				t.Fatal("stream stayed blocked on the channel after cancel")
			}
		})
	}
}

func TestNormalize_StreamPanicAfterFirstChunk(t *testing.T) {
	t.Parallel()

	seq := func(yield func(any, error) bool) {
		if !yield(1, nil) {
			return
		}
		panic("boom")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := normalize(t, req, iter.Seq2[any, error](seq))

	rec := httptest.NewRecorder()
	var err error
	require.NotPanics(t, func() {
		err = response.Write(rec, req, resp)
	})

	var p *handler.PanicError
	require.ErrorAs(t, err, &p)
	assert.Equal(t, "boom", p.Value())
	assert.NotEmpty(t, p.Stack())
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data: 1\n\n", rec.Body.String())
}

func TestResponse_CloseReleasesUnconsumedStream(t *testing.T) {
	t.Parallel()

	released := false
	seq := func(yield func(any, error) bool) {
		defer func() { released = true }()
		for {
			if !yield("tick", nil) {
				return
			}
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := normalize(t, req, iter.Seq2[any, error](seq))
	resp.Close()
	assert.True(t, released)
}

func TestWrite(t *testing.T) {
	t.Parallel()

	t.Run("buffered", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		resp := response.JSONWithStatus(map[string]string{"id": "1"}, http.StatusCreated)
		resp.Header.Set("X-Custom", "yes")
		rec := write(t, req, resp)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "yes", rec.Header().Get("X-Custom"))
		assert.JSONEq(t, `{"id":"1"}`, rec.Body.String())
	})

	t.Run("head omits body", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodHead, "/", nil)
		rec := write(t, req, response.Text("body"))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("no content", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodDelete, "/", nil)
		rec := write(t, req, response.JSONWithStatus(nil, 0))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := response.ParseFormat("NDJSON")
	require.NoError(t, err)
	assert.Equal(t, response.FormatNDJSON, f)

	f, err = response.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, response.FormatSSE, f)

	_, err = response.ParseFormat("xml")
	assert.ErrorIs(t, err, response.ErrUnknownFormat)
}

func TestEvent(t *testing.T) {
	t.Parallel()

	b, err := response.Event("update", "line1\nline2")
	require.NoError(t, err)
	assert.Equal(t, "event: update\ndata: line1\ndata: line2\n\n", string(b))
}

func TestEchoWebSocket(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = response.Write(w, r, response.EchoWebSocket())
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "ping", string(msg))
}
