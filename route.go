package flowkit

import (
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/core/lifecycle"
	"github.com/dmitrymomot/flowkit/core/router"
	"github.com/dmitrymomot/flowkit/core/schema"
)

// MethodAll registers a route for every method not claimed by a more
// specific registration on the same pattern.
const MethodAll = router.MethodAll

// route is a registration as seen from one app. Mounting copies the route
// with the mounting app prepended to chain.
type route struct {
	method  string
	pattern string
	handler handler.HandlerFunc
	spec    *routeSpec

	// chain runs from the app holding the registry down to the app the route
	// was registered on.
	chain []*App

	composed atomic.Pointer[composed]
}

// routeSpec is the per-route contract and hooks, shared by every mounted copy.
type routeSpec struct {
	body      *schema.Schema
	query     *schema.Schema
	params    *schema.Schema
	responses map[int]*schema.Schema
	parser    string

	summary     string
	description string
	tags        []string
	operationID string

	hooks *lifecycle.Store
}

func (rt *route) mountedAt(parent *App) *route {
	chain := make([]*App, 0, len(rt.chain)+1)
	chain = append(chain, parent)
	chain = append(chain, rt.chain...)
	return &route{
		method:  rt.method,
		pattern: rt.pattern,
		handler: rt.handler,
		spec:    rt.spec,
		chain:   chain,
	}
}

// owner is the app the route was registered on.
func (rt *route) owner() *App {
	return rt.chain[len(rt.chain)-1]
}

// RouteOption configures a single route.
type RouteOption func(*routeSpec) error

// Body declares the request body schema.
func Body(s *schema.Schema) RouteOption {
	return func(r *routeSpec) error {
		r.body = s
		return nil
	}
}

// BodyOf declares the request body schema derived from T.
func BodyOf[T any]() RouteOption {
	return Body(schema.FromType[T]())
}

// Query declares the query string schema.
func Query(s *schema.Schema) RouteOption {
	return func(r *routeSpec) error {
		r.query = s
		return nil
	}
}

// QueryOf declares the query string schema derived from T.
func QueryOf[T any]() RouteOption {
	return Query(schema.FromType[T]())
}

// Params declares the path parameter schema.
func Params(s *schema.Schema) RouteOption {
	return func(r *routeSpec) error {
		r.params = s
		return nil
	}
}

// Returns declares the response schema for status.
func Returns(status int, s *schema.Schema) RouteOption {
	return func(r *routeSpec) error {
		if r.responses == nil {
			r.responses = make(map[int]*schema.Schema)
		}
		r.responses[status] = s
		return nil
	}
}

// Parser forces the body parser: none, text, json, formdata, urlencoded,
// arrayBuffer or an explicit media type.
func Parser(kind string) RouteOption {
	return func(r *routeSpec) error {
		r.parser = kind
		return nil
	}
}

// Summary sets the one-line route description.
func Summary(s string) RouteOption {
	return func(r *routeSpec) error {
		r.summary = s
		return nil
	}
}

// Description sets the long route description.
func Description(s string) RouteOption {
	return func(r *routeSpec) error {
		r.description = s
		return nil
	}
}

// Tags groups the route for documentation.
func Tags(tags ...string) RouteOption {
	return func(r *routeSpec) error {
		r.tags = append(r.tags, tags...)
		return nil
	}
}

// OperationID overrides the generated operation id.
func OperationID(id string) RouteOption {
	return func(r *routeSpec) error {
		r.operationID = id
		return nil
	}
}

func routeHook(event lifecycle.Event, fn any) RouteOption {
	return func(r *routeSpec) error {
		return addHook(r.hooks, 0, event, fn, nil)
	}
}

// BeforeHandle attaches a beforeHandle hook to the route only.
func BeforeHandle(fn handler.BeforeHandleHook) RouteOption {
	return routeHook(lifecycle.EventBeforeHandle, fn)
}

// AfterHandle attaches an afterHandle hook to the route only.
func AfterHandle(fn handler.AfterHandleHook) RouteOption {
	return routeHook(lifecycle.EventAfterHandle, fn)
}

// Transform attaches a transform hook to the route only.
func Transform(fn handler.TransformHook) RouteOption {
	return routeHook(lifecycle.EventTransform, fn)
}

// ParseWith attaches a parse hook to the route only.
func ParseWith(fn handler.ParseHook) RouteOption {
	return routeHook(lifecycle.EventParse, fn)
}

// MapResponse attaches a mapResponse hook to the route only.
func MapResponse(fn handler.MapResponseHook) RouteOption {
	return routeHook(lifecycle.EventMapResponse, fn)
}

// AfterResponse attaches an afterResponse hook to the route only.
func AfterResponse(fn handler.AfterResponseHook) RouteOption {
	return routeHook(lifecycle.EventAfterResponse, fn)
}

// OnErrorRoute attaches an error hook that runs before any app error hook.
func OnErrorRoute(fn handler.ErrorHook) RouteOption {
	return routeHook(lifecycle.EventError, fn)
}

// Register adds a route. method is an HTTP method or MethodAll.
func (a *App) Register(method, pattern string, h HandlerFunc, opts ...RouteOption) error {
	if h == nil {
		return fmt.Errorf("%w: %s %s", ErrNilHandler, method, pattern)
	}
	spec := &routeSpec{hooks: lifecycle.NewStore()}
	for _, opt := range opts {
		if err := opt(spec); err != nil {
			return fmt.Errorf("route %s %s: %w", method, pattern, err)
		}
	}
	rt := &route{
		method:  strings.ToUpper(method),
		pattern: router.NormalizePath(pattern),
		handler: h,
		spec:    spec,
		chain:   []*App{a},
	}
	return a.routes.Register(method, pattern, rt)
}

func (a *App) mustRegister(method, pattern string, h HandlerFunc, opts []RouteOption) *App {
	if err := a.Register(method, pattern, h, opts...); err != nil {
		panic(err)
	}
	return a
}

// Get registers a GET route.
func (a *App) Get(pattern string, h HandlerFunc, opts ...RouteOption) *App {
	return a.mustRegister(http.MethodGet, pattern, h, opts)
}

// Post registers a POST route.
func (a *App) Post(pattern string, h HandlerFunc, opts ...RouteOption) *App {
	return a.mustRegister(http.MethodPost, pattern, h, opts)
}

// Put registers a PUT route.
func (a *App) Put(pattern string, h HandlerFunc, opts ...RouteOption) *App {
	return a.mustRegister(http.MethodPut, pattern, h, opts)
}

// Patch registers a PATCH route.
func (a *App) Patch(pattern string, h HandlerFunc, opts ...RouteOption) *App {
	return a.mustRegister(http.MethodPatch, pattern, h, opts)
}

// Delete registers a DELETE route.
func (a *App) Delete(pattern string, h HandlerFunc, opts ...RouteOption) *App {
	return a.mustRegister(http.MethodDelete, pattern, h, opts)
}

// Head registers a HEAD route.
func (a *App) Head(pattern string, h HandlerFunc, opts ...RouteOption) *App {
	return a.mustRegister(http.MethodHead, pattern, h, opts)
}

// Options registers an OPTIONS route.
func (a *App) Options(pattern string, h HandlerFunc, opts ...RouteOption) *App {
	return a.mustRegister(http.MethodOptions, pattern, h, opts)
}

// All registers a route for every method not claimed elsewhere on pattern.
func (a *App) All(pattern string, h HandlerFunc, opts ...RouteOption) *App {
	return a.mustRegister(MethodAll, pattern, h, opts)
}
