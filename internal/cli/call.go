package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/flowkit/core/handler"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Body    string
	Headers []string
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <method> <path>",
		Short: "Run one request through the application",
		Long: `Run one request through the application and print the response.

The request passes through middleware, hooks, validation and error
handling exactly as it would when served. Start and stop hooks run
around the request.

Example:
  flowkit call POST /users --body '{"name":"Ann","email":"ann@example.com"}' \
    --header Content-Type:application/json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return call(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&opts.Body, "body", "d", "", "request body")
	cmd.Flags().StringArrayVarP(&opts.Headers, "header", "H", nil, "request header as Name:Value (repeatable)")

	return cmd
}

func call(cmd *cobra.Command, opts *CallOptions, method, target string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var body io.Reader
	if opts.Body != "" {
		body = strings.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), target, body)
	if err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	for _, h := range opts.Headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("invalid header %q: expected Name:Value", h)
		}
		req.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	req.RemoteAddr = "127.0.0.1:0"

	app, cleanup, err := opts.Load(ctx, opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer cleanup()

	if err := app.Start(ctx); err != nil {
		return err
	}
	resp := app.Handle(req)
	werr := writeResponse(ctx, cmd.OutOrStdout(), req, resp)
	resp.Close()
	if err := app.Stop(context.WithoutCancel(ctx)); err != nil {
		return err
	}
	return werr
}

// writeResponse prints resp in HTTP/1.1 wire style with sorted headers.
// Streams are printed chunk by chunk as they are produced.
func writeResponse(ctx context.Context, w io.Writer, req *http.Request, resp *handler.Response) error {
	if resp.Render != nil {
		buf := &bufferedWriter{header: resp.Header.Clone()}
		if buf.header == nil {
			buf.header = http.Header{}
		}
		if err := resp.Render(buf, req); err != nil {
			return err
		}
		if buf.status == 0 {
			buf.status = http.StatusOK
		}
		resp = &handler.Response{Status: buf.status, Header: buf.header, Body: buf.body.Bytes()}
	}

	if _, err := fmt.Fprintf(w, "HTTP/1.1 %d %s\n", resp.Status, http.StatusText(resp.Status)); err != nil {
		return err
	}
	keys := make([]string, 0, len(resp.Header))
	for k := range resp.Header {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, v := range resp.Header[k] {
			if _, err := fmt.Fprintf(w, "%s: %s\n", k, v); err != nil {
				return err
			}
		}
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return err
	}

	if resp.IsStream() {
		return resp.Stream(ctx, func(chunk []byte) error {
			_, err := w.Write(chunk)
			return err
		})
	}
	if len(resp.Body) == 0 {
		return nil
	}
	if _, err := w.Write(resp.Body); err != nil {
		return err
	}
	if resp.Body[len(resp.Body)-1] != '\n' {
		_, err := io.WriteString(w, "\n")
		return err
	}
	return nil
}

// bufferedWriter captures responses that render themselves.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	if b.status == 0 {
		b.status = code
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.WriteHeader(http.StatusOK)
	return b.body.Write(p)
}
