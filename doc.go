// Package flowkit is a composable HTTP application framework built around a
// segment-tree router, a typed request lifecycle and onion middleware.
//
// # Routing
//
// Routes are registered per method. Patterns support static segments, named
// parameters (:id), optional trailing parameters (:lang?) and a catch-all (*).
// Static segments win over parameters, parameters over optional parameters,
// and those over the catch-all. All registers a fallback for every method
// without a more specific registration:
//
//	app := flowkit.New()
//	app.Get("/users/me", me)
//	app.Get("/users/:id", getUser, flowkit.Params(schema.Object(map[string]*schema.Schema{
//		"id": schema.String().MinLen(5),
//	}, "id")))
//
// # Lifecycle
//
// Every matched request passes through these phases in order:
//
//	request -> parse -> transform -> validate -> beforeHandle -> handler
//	  -> afterHandle -> mapResponse -> afterResponse
//
// Request hooks run before routing and also see unmatched requests. The first
// request or beforeHandle hook returning a non-nil value short-circuits the
// pipeline. Errors, panics included, are routed through error hooks and end in
// a default JSON error body when no hook answers.
//
// # Composition
//
// Apps are mounted into each other with Mount, or grouped with Route.
// Hook scopes control propagation:
//
//   - Local hooks apply to routes of the registering app only.
//   - Scoped hooks also apply to routes of apps mounted directly below.
//   - Global hooks apply to every app below and are promoted to the parent.
//
// Named apps (WithName) behave as plugins: mounting the same plugin twice
// registers its hooks once.
//
// # Middleware
//
// Middleware wraps the pipeline in onion order:
//
//	app.Use(func(c *flowkit.Context, next flowkit.Next) (*flowkit.Response, error) {
//		resp, err := next()
//		if err == nil {
//			resp.Header.Set("X-Served-By", "flowkit")
//		}
//		return resp, err
//	})
//
// Returning a response without calling next short-circuits; returning nil,
// nil continues with next's result. handler.Halt and handler.Redirect unwind
// the whole chain with a final response.
//
// # Responses
//
// Handlers may return a *Response, nil, []byte, strings and other
// JSON-encodable values, templ components, readers, channels or iterator
// sequences. Sequences and channels are streamed as Server-Sent Events or
// NDJSON depending on the Accept header and WithStreamFormat.
package flowkit
