package flowkit

import "github.com/dmitrymomot/flowkit/core/handler"

// runChain runs mws around final in onion order. A middleware that returns
// no response and no error lets the chain continue: if it already called
// next, next's outcome is used, otherwise next is called for it. next runs
// the remainder at most once.
func runChain(c *handler.Context, mws []handler.Middleware, final handler.Next) (*handler.Response, error) {
	if len(mws) == 0 {
		return final()
	}
	return step(c, mws, 0, final)
}

func step(c *handler.Context, mws []handler.Middleware, i int, final handler.Next) (*handler.Response, error) {
	if i == len(mws) {
		return final()
	}

	var (
		called bool
		resp   *handler.Response
		err    error
	)
	next := func() (*handler.Response, error) {
		if !called {
			called = true
			resp, err = step(c, mws, i+1, final)
		}
		return resp, err
	}

	out, mwErr := mws[i](c, next)
	switch {
	case mwErr != nil:
		return nil, mwErr
	case out != nil:
		return out, nil
	}
	return next()
}
