package handler

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrymomot/flowkit/core/binder"
)

// State is the application-wide mutable store shared by every request of a
// root app and its mounted children. Access is not synchronized.
type State map[string]any

// PreContext is the request context available before routing.
// It implements context.Context by delegating to the request context.
type PreContext struct {
	request    *http.Request
	state      State
	decorators map[string]any
	values     map[any]any
	status     int
	header     http.Header
}

// NewPreContext creates the pre-routing context for r.
func NewPreContext(r *http.Request, state State, decorators map[string]any) *PreContext {
	if state == nil {
		state = State{}
	}
	return &PreContext{
		request:    r,
		state:      state,
		decorators: decorators,
		header:     http.Header{},
	}
}

// Deadline implements context.Context.
func (c *PreContext) Deadline() (deadline time.Time, ok bool) {
	return c.request.Context().Deadline()
}

// Done implements context.Context.
func (c *PreContext) Done() <-chan struct{} {
	return c.request.Context().Done()
}

// Err implements context.Context.
func (c *PreContext) Err() error {
	return c.request.Context().Err()
}

// Value returns values stored with SetValue before falling back to the
// request context.
func (c *PreContext) Value(key any) any {
	if v, ok := c.values[key]; ok {
		return v
	}
	return c.request.Context().Value(key)
}

// SetValue stores a request-scoped value retrievable through Value.
func (c *PreContext) SetValue(key, val any) {
	if c.values == nil {
		c.values = make(map[any]any)
	}
	c.values[key] = val
}

// SetContext replaces the request context, for example to carry a tracing
// span to downstream calls.
func (c *PreContext) SetContext(ctx context.Context) {
	c.request = c.request.WithContext(ctx)
}

// Request returns the underlying request.
func (c *PreContext) Request() *http.Request {
	return c.request
}

// Store returns the shared application state.
func (c *PreContext) Store() State {
	return c.state
}

// Decorator returns a value registered with the app's Decorate or Derive.
func (c *PreContext) Decorator(key string) (any, bool) {
	v, ok := c.decorators[key]
	return v, ok
}

// SetDecorator adds a per-request derived value.
func (c *PreContext) SetDecorator(key string, val any) {
	if c.decorators == nil {
		c.decorators = make(map[string]any)
	}
	c.decorators[key] = val
}

// Status overrides the status of the final response.
func (c *PreContext) Status(code int) {
	c.status = code
}

// StatusCode returns the status override, zero when unset.
func (c *PreContext) StatusCode() int {
	return c.status
}

// Header returns headers merged into the final response.
func (c *PreContext) Header() http.Header {
	return c.header
}

// Context is the per-request context handed to middleware, hooks and handlers.
type Context struct {
	*PreContext

	route    string
	params   map[string]string
	query    url.Values
	body     any
	raw      []byte
	response any
	final    *Response
}

// NewContext creates a request context from the pre-routing context.
func NewContext(pre *PreContext) *Context {
	return &Context{
		PreContext: pre,
		params:     map[string]string{},
		query:      pre.request.URL.Query(),
	}
}

// SetRoute records the matched route pattern and extracted parameters.
func (c *Context) SetRoute(pattern string, params map[string]string) {
	c.route = pattern
	if params == nil {
		params = map[string]string{}
	}
	c.params = params
}

// Route returns the matched route pattern, empty when no route matched.
func (c *Context) Route() string {
	return c.route
}

// Path returns the request path.
func (c *Context) Path() string {
	return c.request.URL.Path
}

// Method returns the request method.
func (c *Context) Method() string {
	return c.request.Method
}

// Param returns the named path parameter. The catch-all segment is keyed "*".
func (c *Context) Param(key string) string {
	return c.params[key]
}

// Params returns all extracted path parameters.
func (c *Context) Params() map[string]string {
	return c.params
}

// Query returns the parsed query string.
func (c *Context) Query() url.Values {
	return c.query
}

// Body returns the parsed request body.
func (c *Context) Body() any {
	return c.body
}

// RawBody returns the body bytes read from the request, if any.
func (c *Context) RawBody() []byte {
	return c.raw
}

// SetBody replaces the parsed body and its raw form.
func (c *Context) SetBody(v any, raw []byte) {
	c.body = v
	c.raw = raw
}

// Bind decodes the raw JSON body into v.
func (c *Context) Bind(v any) error {
	return binder.Bind(c.raw, v)
}

// BindQuery decodes query parameters into the struct pointed to by v
// using `query` tags.
func (c *Context) BindQuery(v any) error {
	return binder.BindValues(v, "query", c.query)
}

// BindParams decodes path parameters into the struct pointed to by v
// using `path` tags.
func (c *Context) BindParams(v any) error {
	values := make(url.Values, len(c.params))
	for k, p := range c.params {
		values.Set(k, p)
	}
	return binder.BindValues(v, "path", values)
}

// Response returns the in-flight handler result seen by afterHandle,
// mapResponse and afterResponse hooks.
func (c *Context) Response() any {
	return c.response
}

// SetResponse replaces the in-flight handler result.
func (c *Context) SetResponse(v any) {
	c.response = v
}

// FinalResponse is the normalized response sent to the client, with status
// and headers resolved. It is nil until the pipeline has finished, so only
// afterResponse hooks observe it.
func (c *Context) FinalResponse() *Response {
	return c.final
}

// SetFinalResponse records the normalized response.
func (c *Context) SetFinalResponse(resp *Response) {
	c.final = resp
}

var _ context.Context = (*PreContext)(nil)
