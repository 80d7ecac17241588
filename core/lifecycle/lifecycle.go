// Package lifecycle stores the hooks an app registers for each request phase
// and propagates them across mounted sub-apps.
//
// Every hook carries a scope:
//
//   - local: applies only to routes of the app that registered it
//   - scoped: also applies to routes of the app's direct children
//   - global: applies to every app mounted below, and is promoted to the
//     parent when the app itself is mounted
//
// Hooks that share a non-zero checksum and the same function are stored only
// once, which lets named plugins be mounted repeatedly without duplication.
package lifecycle

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/dmitrymomot/flowkit/core/handler"
)

// Event names a lifecycle phase.
type Event string

const (
	EventRequest       Event = "request"
	EventParse         Event = "parse"
	EventTransform     Event = "transform"
	EventBeforeHandle  Event = "beforeHandle"
	EventAfterHandle   Event = "afterHandle"
	EventMapResponse   Event = "mapResponse"
	EventAfterResponse Event = "afterResponse"
	EventError         Event = "error"
	EventStart         Event = "start"
	EventStop          Event = "stop"
)

// Events lists every phase in pipeline order.
var Events = []Event{
	EventRequest,
	EventParse,
	EventTransform,
	EventBeforeHandle,
	EventAfterHandle,
	EventMapResponse,
	EventAfterResponse,
	EventError,
	EventStart,
	EventStop,
}

// Scope controls how far a hook propagates through mounted apps.
type Scope uint8

const (
	ScopeLocal Scope = iota
	ScopeScoped
	ScopeGlobal
)

func (s Scope) String() string {
	switch s {
	case ScopeScoped:
		return "scoped"
	case ScopeGlobal:
		return "global"
	default:
		return "local"
	}
}

// ParseScope converts a scope name into a Scope.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(s) {
	case "", "local":
		return ScopeLocal, nil
	case "scoped":
		return ScopeScoped, nil
	case "global":
		return ScopeGlobal, nil
	}
	return ScopeLocal, fmt.Errorf("%w: %q", ErrUnknownScope, s)
}

var (
	ErrHookSignature = errors.New("hook function does not match event signature")
	ErrUnknownEvent  = errors.New("unknown lifecycle event")
	ErrUnknownScope  = errors.New("unknown hook scope")
	ErrNilHook       = errors.New("nil hook function")
)

// Hook is a registered lifecycle callback.
type Hook struct {
	// Fn is one of the hook function types from the handler package.
	Fn any

	Scope Scope

	// Checksum identifies the plugin that registered the hook. Zero disables
	// deduplication.
	Checksum uint64

	// ContentType restricts a parse hook to one media type. Empty matches all.
	ContentType string

	// Name tells apart hooks built from the same function literal, such as
	// derive hooks for different keys.
	Name string

	// Origin is the id of the store the hook was first registered in.
	Origin uint64

	id uint64
}

// ID uniquely identifies the registration. Copies made by Merge keep it.
func (h Hook) ID() uint64 {
	return h.id
}

// Matches reports whether a parse hook applies to contentType.
func (h Hook) Matches(contentType string) bool {
	return h.ContentType == "" || strings.EqualFold(h.ContentType, contentType)
}

func (h Hook) fnPointer() uintptr {
	return reflect.ValueOf(h.Fn).Pointer()
}

var (
	storeSeq atomic.Uint64
	hookSeq  atomic.Uint64
)

// Store holds the hooks of one app.
type Store struct {
	mu      sync.RWMutex
	id      uint64
	hooks   map[Event][]Hook
	version atomic.Uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		id:    storeSeq.Add(1),
		hooks: make(map[Event][]Hook),
	}
}

// ID uniquely identifies the store within the process.
func (s *Store) ID() uint64 {
	return s.id
}

// Add registers h for event after checking that h.Fn has the event's
// signature.
func (s *Store) Add(event Event, h Hook) error {
	if err := validate(event, h.Fn); err != nil {
		return err
	}
	if h.Origin == 0 {
		h.Origin = s.id
	}
	h.id = hookSeq.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.contains(event, h) {
		return nil
	}
	s.hooks[event] = append(s.hooks[event], h)
	s.version.Add(1)
	return nil
}

// contains reports whether an equivalent hook is already registered.
// Caller must hold the lock.
func (s *Store) contains(event Event, h Hook) bool {
	var ptr uintptr
	if h.Checksum != 0 {
		ptr = h.fnPointer()
	}
	return slices.ContainsFunc(s.hooks[event], func(existing Hook) bool {
		if h.id != 0 && existing.id == h.id {
			return true
		}
		return h.Checksum != 0 &&
			existing.Checksum == h.Checksum &&
			existing.Name == h.Name &&
			existing.ContentType == h.ContentType &&
			existing.fnPointer() == ptr
	})
}

// Hooks returns the hooks for event in registration order.
func (s *Store) Hooks(event Event) []Hook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.hooks[event])
}

// Filter returns the hooks for event with at least the given scope.
func (s *Store) Filter(event Event, atLeast Scope) []Hook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Hook
	for _, h := range s.hooks[event] {
		if h.Scope >= atLeast {
			out = append(out, h)
		}
	}
	return out
}

// Len returns the number of hooks registered for event.
func (s *Store) Len(event Event) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hooks[event])
}

// Version changes whenever a hook is added.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

// Merge promotes the global hooks of child into s. Hooks already present,
// by registration id or by plugin checksum, are skipped. It returns the
// number of hooks added.
func (s *Store) Merge(child *Store) int {
	if child == nil || child == s {
		return 0
	}

	type pending struct {
		event Event
		hook  Hook
	}
	child.mu.RLock()
	var promoted []pending
	for _, event := range Events {
		for _, h := range child.hooks[event] {
			if h.Scope == ScopeGlobal {
				promoted = append(promoted, pending{event, h})
			}
		}
	}
	child.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, p := range promoted {
		if s.contains(p.event, p.hook) {
			continue
		}
		s.hooks[p.event] = append(s.hooks[p.event], p.hook)
		added++
	}
	if added > 0 {
		s.version.Add(1)
	}
	return added
}

// Resolve returns the hooks for event that apply to routes owned by the last
// store in chain. chain runs from the root app down to the owning app.
// Ancestor globals come first (root first), then the parent's scoped hooks,
// then every hook of the owner.
func Resolve(event Event, chain []*Store) []Hook {
	return ResolveLevels(event, levels(chain))
}

// ResolveErrors returns error hooks in routing order: the owner's hooks, then
// the parent's scoped hooks, then ancestor globals nearest first.
func ResolveErrors(chain []*Store) []Hook {
	return ResolveErrorLevels(levels(chain))
}

// ResolveLevels is Resolve for chains where a level may hold several stores
// that act as one app, such as an app and its route groups. Stores within a
// level are read in order.
func ResolveLevels(event Event, chain [][]*Store) []Hook {
	if len(chain) == 0 {
		return nil
	}
	var r resolver
	owner := len(chain) - 1
	for _, level := range chain[:owner] {
		for _, st := range level {
			r.add(st.Filter(event, ScopeGlobal))
		}
	}
	if owner > 0 {
		for _, st := range chain[owner-1] {
			r.add(onlyScope(st.Hooks(event), ScopeScoped))
		}
	}
	for _, st := range chain[owner] {
		r.add(st.Hooks(event))
	}
	return r.out
}

// ResolveErrorLevels is ResolveErrors over levels. Within the owner level the
// innermost store comes first.
func ResolveErrorLevels(chain [][]*Store) []Hook {
	if len(chain) == 0 {
		return nil
	}
	var r resolver
	owner := len(chain) - 1
	for i := len(chain[owner]) - 1; i >= 0; i-- {
		r.add(chain[owner][i].Hooks(EventError))
	}
	if owner > 0 {
		for _, st := range chain[owner-1] {
			r.add(onlyScope(st.Hooks(EventError), ScopeScoped))
		}
	}
	for i := owner - 1; i >= 0; i-- {
		for _, st := range chain[i] {
			r.add(st.Filter(EventError, ScopeGlobal))
		}
	}
	return r.out
}

func levels(chain []*Store) [][]*Store {
	out := make([][]*Store, len(chain))
	for i, st := range chain {
		out[i] = []*Store{st}
	}
	return out
}

// resolver collects hooks skipping registrations already seen.
type resolver struct {
	out  []Hook
	seen map[uint64]struct{}
}

func (r *resolver) add(hooks []Hook) {
	if r.seen == nil {
		r.seen = make(map[uint64]struct{})
	}
	for _, h := range hooks {
		if _, dup := r.seen[h.id]; dup {
			continue
		}
		r.seen[h.id] = struct{}{}
		r.out = append(r.out, h)
	}
}

func onlyScope(hooks []Hook, scope Scope) []Hook {
	out := hooks[:0]
	for _, h := range hooks {
		if h.Scope == scope {
			out = append(out, h)
		}
	}
	return out
}

// Checksum derives the deduplication key for a named plugin.
// It returns zero when name and seed are both empty.
func Checksum(name, seed string) uint64 {
	if name == "" && seed == "" {
		return 0
	}
	d := xxhash.New()
	_, _ = d.WriteString(name)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(seed)
	return d.Sum64()
}

func validate(event Event, fn any) error {
	if fn == nil {
		return ErrNilHook
	}
	if rv := reflect.ValueOf(fn); rv.Kind() == reflect.Func && rv.IsNil() {
		return ErrNilHook
	}

	var ok bool
	switch event {
	case EventRequest:
		_, ok = fn.(handler.RequestHook)
	case EventParse:
		_, ok = fn.(handler.ParseHook)
	case EventTransform:
		_, ok = fn.(handler.TransformHook)
	case EventBeforeHandle:
		_, ok = fn.(handler.BeforeHandleHook)
	case EventAfterHandle:
		_, ok = fn.(handler.AfterHandleHook)
	case EventMapResponse:
		_, ok = fn.(handler.MapResponseHook)
	case EventAfterResponse:
		_, ok = fn.(handler.AfterResponseHook)
	case EventError:
		_, ok = fn.(handler.ErrorHook)
	case EventStart, EventStop:
		_, ok = fn.(handler.LifecycleHook)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	if !ok {
		return fmt.Errorf("%w: %s got %T", ErrHookSignature, event, fn)
	}
	return nil
}
