package flowkit

import (
	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/core/lifecycle"
)

// composed is the resolved pipeline of a route: hooks from every level of
// its mount chain plus the middleware of mounted apps. It is rebuilt when any
// store or middleware list in the chain changes.
type composed struct {
	version    uint64
	hooks      map[lifecycle.Event][]lifecycle.Hook
	errors     []lifecycle.Hook
	middleware []handler.Middleware
}

// pipelineEvents are the route-level events resolved at composition time.
var pipelineEvents = []lifecycle.Event{
	lifecycle.EventParse,
	lifecycle.EventTransform,
	lifecycle.EventBeforeHandle,
	lifecycle.EventAfterHandle,
	lifecycle.EventMapResponse,
	lifecycle.EventAfterResponse,
}

// version sums the monotonic versions of everything the pipeline depends on,
// so any registration yields a larger value.
func (rt *route) version() uint64 {
	v := rt.spec.hooks.Version()
	for _, app := range rt.chain {
		v += app.hooks.Version() + app.mwVersion.Load()
	}
	return v
}

// compose returns the memoized pipeline, building it when missing or stale.
// Concurrent builders produce equivalent values and the last store wins.
func (rt *route) compose() *composed {
	v := rt.version()
	if c := rt.composed.Load(); c != nil && c.version == v {
		return c
	}

	levels := rt.levels()
	c := &composed{
		version: v,
		hooks:   make(map[lifecycle.Event][]lifecycle.Hook, len(pipelineEvents)),
	}
	for _, event := range pipelineEvents {
		c.hooks[event] = append(lifecycle.ResolveLevels(event, levels), rt.spec.hooks.Hooks(event)...)
	}
	c.errors = append(rt.spec.hooks.Hooks(lifecycle.EventError), lifecycle.ResolveErrorLevels(levels)...)

	// The first app's middleware wraps the whole dispatch instead.
	for _, app := range rt.chain[1:] {
		c.middleware = append(c.middleware, app.middlewares()...)
	}

	rt.composed.Store(c)
	return c
}

// levels groups the chain stores by app level; route groups join the level
// of the app they were created in.
func (rt *route) levels() [][]*lifecycle.Store {
	out := make([][]*lifecycle.Store, 0, len(rt.chain))
	for i, app := range rt.chain {
		if app.group && i > 0 {
			last := len(out) - 1
			out[last] = append(out[last], app.hooks)
			continue
		}
		out = append(out, []*lifecycle.Store{app.hooks})
	}
	return out
}
