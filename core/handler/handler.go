package handler

import "context"

// HandlerFunc handles a matched request. The returned value is normalized into
// a Response by the dispatcher; returning a *Response skips normalization.
type HandlerFunc func(c *Context) (any, error)

// Next invokes the remainder of the middleware chain.
type Next func() (*Response, error)

// Middleware wraps the rest of the request pipeline.
type Middleware func(c *Context, next Next) (*Response, error)

// Lifecycle hook signatures. A hook returning a non-nil value short-circuits
// the phase it belongs to; see the lifecycle package for phase ordering.
type (
	// RequestHook runs before routing. It only sees the pre-routing context.
	RequestHook func(c *PreContext) (any, error)

	// ParseHook may replace body parsing. A non-nil value becomes the body.
	ParseHook func(c *Context, contentType string) (any, error)

	// TransformHook mutates the context before validation.
	TransformHook func(c *Context) error

	// BeforeHandleHook runs after validation. A non-nil value replaces the handler.
	BeforeHandleHook func(c *Context) (any, error)

	// AfterHandleHook sees the handler result via Context.Response.
	AfterHandleHook func(c *Context) (any, error)

	// MapResponseHook may replace the result before it is normalized.
	MapResponseHook func(c *Context) (any, error)

	// AfterResponseHook observes the finished request. Its error is logged only.
	AfterResponseHook func(c *Context) error

	// ErrorHook maps an error to a response. A nil value defers to the next hook.
	ErrorHook func(c *Context, err *Error) (any, error)

	// LifecycleHook runs on server start or stop.
	LifecycleHook func(ctx context.Context) error
)
