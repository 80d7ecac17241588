package flowkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"

	"github.com/dmitrymomot/flowkit/core/binder"
	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/core/lifecycle"
	"github.com/dmitrymomot/flowkit/core/logger"
	"github.com/dmitrymomot/flowkit/core/response"
	"github.com/dmitrymomot/flowkit/core/router"
	"github.com/dmitrymomot/flowkit/core/schema"
)

// App is a routable application. Apps compose through Mount; the app whose
// Handle is called owns the shared state and the outermost middleware.
type App struct {
	name     string
	seed     string
	checksum uint64
	logger   *slog.Logger

	bodyLimit        int64
	streamFormat     response.Format
	validateResponse bool

	// group marks apps created by Route; they share their parent's hook level.
	group bool

	routes *router.Registry[*route]
	hooks  *lifecycle.Store

	// mwVersion changes whenever middleware is added so that composed
	// route pipelines are rebuilt.
	mwVersion atomic.Uint64

	mu         sync.RWMutex
	middleware []handler.Middleware
	state      handler.State
	decorators map[string]any
	models     map[string]*schema.Schema
	errorKinds []errorKind
	children   []*App
}

// New creates an app.
func New(opts ...Option) *App {
	a := &App{
		logger:       logger.Discard(),
		bodyLimit:    binder.DefaultMaxBodySize,
		streamFormat: response.FormatSSE,
		routes:       router.New[*route](),
		hooks:        lifecycle.NewStore(),
		state:        handler.State{},
		decorators:   make(map[string]any),
		models:       make(map[string]*schema.Schema),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.checksum = lifecycle.Checksum(a.name, a.seed)
	return a
}

// Name returns the plugin name set with WithName.
func (a *App) Name() string {
	return a.name
}

// Logger returns the app logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Use appends middleware. The first registered middleware is outermost.
func (a *App) Use(mws ...Middleware) *App {
	a.mu.Lock()
	for _, mw := range mws {
		if mw != nil {
			a.middleware = append(a.middleware, mw)
		}
	}
	a.mu.Unlock()
	a.mwVersion.Add(1)
	return a
}

func (a *App) middlewares() []handler.Middleware {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.middleware
}

// Decorate registers a static value readable from every request through
// PreContext.Decorator.
func (a *App) Decorate(key string, val any) *App {
	a.mu.Lock()
	a.decorators[key] = val
	a.mu.Unlock()
	return a
}

// State sets a value in the shared application store.
func (a *App) State(key string, val any) *App {
	a.mu.Lock()
	a.state[key] = val
	a.mu.Unlock()
	return a
}

// Store returns the shared application store. The store is not synchronized.
func (a *App) Store() handler.State {
	return a.state
}

// Derive registers a transform hook that computes a per-request decorator.
func (a *App) Derive(key string, fn func(c *handler.Context) (any, error), opts ...HookOption) *App {
	hook := handler.TransformHook(func(c *handler.Context) error {
		v, err := fn(c)
		if err != nil {
			return err
		}
		c.SetDecorator(key, v)
		return nil
	})
	return a.addHook(lifecycle.EventTransform, hook, append([]HookOption{withHookName("derive:" + key)}, opts...))
}

// Model registers a named schema referenced with schema.Ref.
func (a *App) Model(name string, s *schema.Schema) *App {
	a.mu.Lock()
	a.models[name] = s
	a.mu.Unlock()
	return a
}

func (a *App) resolveModel(name string) (*schema.Schema, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.models[name]
	return s, ok
}

// Models returns a copy of the model registry.
func (a *App) Models() map[string]*schema.Schema {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return maps.Clone(a.models)
}

// Route registers the routes added by fn under prefix. Hooks of a apply to
// the group routes as if they were registered on a; hooks and middleware
// registered inside fn stay local to the group.
func (a *App) Route(prefix string, fn func(g *App)) *App {
	if fn == nil {
		panic(ErrNilGroup)
	}
	g := New(WithLogger(a.logger))
	g.group = true
	fn(g)
	a.Mount(prefix, g)
	return a
}

// Mount merges child into a under prefix. Routes are copied with the prefix
// applied; global hooks are promoted; models, state and decorators are
// added where a does not define them. Routes added to child afterwards are
// not visible through a.
func (a *App) Mount(prefix string, child *App) *App {
	if child == nil {
		panic(ErrNilApp)
	}
	if child == a {
		panic(ErrSelfMount)
	}

	for _, e := range child.routes.Entries() {
		rt := e.Value.mountedAt(a)
		pattern := router.JoinPath(prefix, e.Pattern)
		rt.pattern = pattern
		if err := a.routes.Register(e.Method, pattern, rt); err != nil {
			panic(err)
		}
	}
	a.hooks.Merge(child.hooks)

	child.mu.RLock()
	models := maps.Clone(child.models)
	state := maps.Clone(child.state)
	decorators := maps.Clone(child.decorators)
	kinds := append([]errorKind(nil), child.errorKinds...)
	child.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.children = append(a.children, child)
	mergeMissing(a.models, models)
	mergeMissing(a.state, state)
	mergeMissing(a.decorators, decorators)
	for _, k := range kinds {
		if !a.hasErrorKind(k.kind) {
			a.errorKinds = append(a.errorKinds, k)
		}
	}
	return a
}

func mergeMissing[M ~map[string]V, V any](dst, src M) {
	for k, v := range src {
		if _, ok := dst[k]; !ok {
			dst[k] = v
		}
	}
}

// serverHooks collects start or stop hooks of a and every app mounted into
// it, parents before children.
func (a *App) serverHooks(event lifecycle.Event) []lifecycle.Hook {
	var out []lifecycle.Hook
	seen := make(map[uint64]struct{})
	var walk func(app *App)
	walk = func(app *App) {
		for _, h := range app.hooks.Hooks(event) {
			if _, dup := seen[h.ID()]; dup {
				continue
			}
			seen[h.ID()] = struct{}{}
			out = append(out, h)
		}
		app.mu.RLock()
		children := append([]*App(nil), app.children...)
		app.mu.RUnlock()
		for _, child := range children {
			walk(child)
		}
	}
	walk(a)
	return out
}

// Start runs the start hooks of a and its mounted apps in registration order
// and stops at the first error.
func (a *App) Start(ctx context.Context) error {
	for _, h := range a.serverHooks(lifecycle.EventStart) {
		if err := h.Fn.(handler.LifecycleHook)(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrStartHook, err)
		}
	}
	a.logger.InfoContext(ctx, "app started",
		logger.Component("flowkit"),
		logger.Event("start"),
		logger.Count("routes", a.routes.Len()),
	)
	return nil
}

// Stop runs every stop hook and joins their errors.
func (a *App) Stop(ctx context.Context) error {
	var errs []error
	for _, h := range a.serverHooks(lifecycle.EventStop) {
		if err := h.Fn.(handler.LifecycleHook)(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.logger.InfoContext(ctx, "app stopped", logger.Component("flowkit"), logger.Event("stop"))
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrStopHook, err)
	}
	return nil
}
