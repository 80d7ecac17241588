package flowkit

import (
	"errors"

	"github.com/dmitrymomot/flowkit/core/handler"
	"github.com/dmitrymomot/flowkit/core/lifecycle"
)

// HookOption configures a hook registration.
type HookOption func(*lifecycle.Hook)

// Local limits the hook to routes of the registering app. This is the default.
func Local() HookOption {
	return WithScope(lifecycle.ScopeLocal)
}

// Scoped extends the hook to routes of apps mounted directly into the
// registering app.
func Scoped() HookOption {
	return WithScope(lifecycle.ScopeScoped)
}

// Global extends the hook to every app mounted below the registering app and
// promotes it to the app it is mounted into.
func Global() HookOption {
	return WithScope(lifecycle.ScopeGlobal)
}

// WithScope sets the hook scope.
func WithScope(s lifecycle.Scope) HookOption {
	return func(h *lifecycle.Hook) {
		h.Scope = s
	}
}

// ForContentType restricts a parse hook to one media type.
func ForContentType(mediaType string) HookOption {
	return func(h *lifecycle.Hook) {
		h.ContentType = mediaType
	}
}

func withHookName(name string) HookOption {
	return func(h *lifecycle.Hook) {
		h.Name = name
	}
}

// addHook registers fn on the app store. Registration errors are programming
// errors and panic, like invalid route patterns.
func (a *App) addHook(event lifecycle.Event, fn any, opts []HookOption) *App {
	if err := addHook(a.hooks, a.checksum, event, fn, opts); err != nil {
		panic(err)
	}
	return a
}

func addHook(store *lifecycle.Store, checksum uint64, event lifecycle.Event, fn any, opts []HookOption) error {
	h := lifecycle.Hook{Fn: fn, Checksum: checksum}
	for _, opt := range opts {
		opt(&h)
	}
	return store.Add(event, h)
}

// OnRequest runs fn before routing for every request, matched or not. The
// first hook returning a non-nil value ends the request with that value.
func (a *App) OnRequest(fn handler.RequestHook, opts ...HookOption) *App {
	return a.addHook(lifecycle.EventRequest, fn, opts)
}

// OnParse registers a body parser. The first parser returning a non-nil value
// provides the body; use ForContentType to restrict it to one media type.
func (a *App) OnParse(fn handler.ParseHook, opts ...HookOption) *App {
	return a.addHook(lifecycle.EventParse, fn, opts)
}

// OnTransform runs fn after parsing and before validation.
func (a *App) OnTransform(fn handler.TransformHook, opts ...HookOption) *App {
	return a.addHook(lifecycle.EventTransform, fn, opts)
}

// OnBeforeHandle runs fn after validation. A non-nil value is used in place
// of the handler result.
func (a *App) OnBeforeHandle(fn handler.BeforeHandleHook, opts ...HookOption) *App {
	return a.addHook(lifecycle.EventBeforeHandle, fn, opts)
}

// OnAfterHandle runs fn after the handler. A non-nil value replaces the result.
func (a *App) OnAfterHandle(fn handler.AfterHandleHook, opts ...HookOption) *App {
	return a.addHook(lifecycle.EventAfterHandle, fn, opts)
}

// OnMapResponse runs fn before the result is converted into a response.
func (a *App) OnMapResponse(fn handler.MapResponseHook, opts ...HookOption) *App {
	return a.addHook(lifecycle.EventMapResponse, fn, opts)
}

// OnAfterResponse runs fn once the response is produced. Errors are logged.
func (a *App) OnAfterResponse(fn handler.AfterResponseHook, opts ...HookOption) *App {
	return a.addHook(lifecycle.EventAfterResponse, fn, opts)
}

// OnError registers an error hook. Hooks run from the route outwards until
// one returns a non-nil value.
func (a *App) OnError(fn handler.ErrorHook, opts ...HookOption) *App {
	return a.addHook(lifecycle.EventError, fn, opts)
}

// OnErrorKind registers an error hook that only sees errors of kind.
func (a *App) OnErrorKind(kind handler.Kind, fn handler.ErrorHook, opts ...HookOption) *App {
	hook := handler.ErrorHook(func(c *handler.Context, err *handler.Error) (any, error) {
		if err.Kind != kind {
			return nil, nil
		}
		return fn(c, err)
	})
	return a.addHook(lifecycle.EventError, hook, append([]HookOption{withHookName("kind:" + string(kind))}, opts...))
}

// OnStart runs fn when the app starts.
func (a *App) OnStart(fn handler.LifecycleHook, opts ...HookOption) *App {
	return a.addHook(lifecycle.EventStart, fn, opts)
}

// OnStop runs fn when the app stops.
func (a *App) OnStop(fn handler.LifecycleHook, opts ...HookOption) *App {
	return a.addHook(lifecycle.EventStop, fn, opts)
}

// errorKind maps matching errors to an application error kind.
type errorKind struct {
	kind   handler.Kind
	match  func(error) bool
	status int
}

// RegisterError declares a custom error kind. Errors for which match returns
// true reach error hooks tagged with kind and default to status.
func (a *App) RegisterError(kind handler.Kind, match func(error) bool, status int) *App {
	if kind == "" || match == nil {
		panic(ErrInvalidErrorKind)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.hasErrorKind(kind) {
		for i := range a.errorKinds {
			if a.errorKinds[i].kind == kind {
				a.errorKinds[i] = errorKind{kind: kind, match: match, status: status}
			}
		}
		return a
	}
	a.errorKinds = append(a.errorKinds, errorKind{kind: kind, match: match, status: status})
	return a
}

// hasErrorKind reports whether kind is registered. Caller must hold the lock.
func (a *App) hasErrorKind(kind handler.Kind) bool {
	for _, k := range a.errorKinds {
		if k.kind == kind {
			return true
		}
	}
	return false
}

// MatchIs matches errors wrapping target.
func MatchIs(target error) func(error) bool {
	return func(err error) bool {
		return errors.Is(err, target)
	}
}

// MatchAs matches errors wrapping a value of type T.
func MatchAs[T error]() func(error) bool {
	return func(err error) bool {
		var target T
		return errors.As(err, &target)
	}
}
