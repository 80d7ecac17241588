package response

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/flowkit/core/handler"
)

var ErrStreamingUnsupported = errors.New("streaming unsupported by response writer")

// Write sends resp over w. Stream chunks are flushed as they are produced
// and production stops when the request context is cancelled. The response
// is closed once written.
func Write(w http.ResponseWriter, r *http.Request, resp *handler.Response) error {
	defer resp.Close()

	h := w.Header()
	for k, vs := range resp.Header {
		h[k] = vs
	}

	if resp.Render != nil {
		return resp.Render(w, r)
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	if !resp.IsStream() {
		w.WriteHeader(status)
		if len(resp.Body) == 0 || r.Method == http.MethodHead || !bodyAllowed(status) {
			return nil
		}
		_, err := w.Write(resp.Body)
		return err
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return ErrStreamingUnsupported
	}

	h.Del("Content-Length")
	w.WriteHeader(status)
	flusher.Flush()

	return resp.Stream(r.Context(), func(chunk []byte) error {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
}

func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}
