// Package handler defines the request-scoped types shared by every layer of
// flowkit: the per-request Context, the transport-neutral Response, the
// handler, middleware and lifecycle hook signatures, and the tagged Error
// used to carry failures to the error router.
//
// # Core Types
//
//	// Route handler. The returned value is normalized into a Response.
//	type HandlerFunc func(c *Context) (any, error)
//
//	// Onion middleware. next runs the remainder of the pipeline.
//	type Middleware func(c *Context, next Next) (*Response, error)
//
// # Middleware Semantics
//
// A middleware decides between three outcomes:
//
//   - call next and return (nil, nil): the downstream response passes through,
//     including any header or status mutations made on the context
//   - call next and return a response: the returned response replaces it
//   - skip next and return a response: the chain short-circuits
//
// A middleware that neither calls next nor returns a response hands control
// to the next middleware in line.
//
// # Halting
//
// Any handler, hook or middleware may return Halt(resp), Redirect(url, code)
// or NotFound(). Halt unwinds the whole chain and resp becomes the final
// response. NotFound routes through the error router like a missing route.
//
//	func requireAuth(c *handler.Context, next handler.Next) (*handler.Response, error) {
//		if c.Request().Header.Get("Authorization") == "" {
//			return nil, handler.Halt(handler.NewResponse(http.StatusUnauthorized, nil))
//		}
//		return next()
//	}
package handler
