package router

import (
	"fmt"
	"strings"
	"sync"
)

// Entry is a registered route.
type Entry[T any] struct {
	Method  string
	Pattern string
	Value   T
}

// Match is the result of a successful lookup.
type Match[T any] struct {
	Entry[T]
	Params map[string]string
}

// Registry maps (method, pattern) pairs to values.
type Registry[T any] struct {
	mu      sync.RWMutex
	tree    *node[T]
	entries []Entry[T]
	index   map[string]int // method + canonical pattern -> position in entries
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		tree:  &node[T]{},
		index: make(map[string]int),
	}
}

// Register adds a route. method is an HTTP method or MethodAll.
// A later registration for the same method and pattern replaces the earlier one.
func (r *Registry[T]) Register(method, pattern string, v T) error {
	method = strings.ToUpper(method)
	mt, ok := methodMap[method]
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}
	if strings.ContainsAny(pattern, " \t\r\n#") {
		return fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
	}

	pattern = normalizePath(pattern)
	segs, keys, err := parsePattern(pattern)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tree.insert(mt, segs, &endpoint[T]{value: v, pattern: pattern, paramKeys: keys})

	key := method + " " + canonical(segs)
	entry := Entry[T]{Method: method, Pattern: pattern, Value: v}
	if idx, ok := r.index[key]; ok {
		r.entries[idx] = entry
		return nil
	}
	r.index[key] = len(r.entries)
	r.entries = append(r.entries, entry)
	return nil
}

// Resolve finds the route for method and path. path is the escaped request
// path (url.URL.EscapedPath); segments and captured params are unescaped
// after splitting, so "/ids/a%2Fb" matches "/ids/:id" with id "a/b".
func (r *Registry[T]) Resolve(method, path string) (Match[T], bool) {
	mt := methodMap[strings.ToUpper(method)]
	if mt == mALL {
		mt = 0
	}
	segs := splitRequestPath(path)

	r.mu.RLock()
	ep, caps := r.tree.find(mt, segs, make([]capture, 0, len(segs)))
	r.mu.RUnlock()

	if ep == nil {
		return Match[T]{}, false
	}

	params := make(map[string]string, len(ep.paramKeys))
	for i, key := range ep.paramKeys {
		if i < len(caps) && caps[i].ok {
			params[key] = caps[i].value
		}
	}

	m := Match[T]{
		Entry:  Entry[T]{Method: strings.ToUpper(method), Pattern: ep.pattern, Value: ep.value},
		Params: params,
	}
	return m, true
}

// Entries returns routes as registered, with ALL kept unexpanded.
func (r *Registry[T]) Entries() []Entry[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry[T], len(r.entries))
	copy(out, r.entries)
	return out
}

// Routes returns routes in registration order with every ALL route expanded
// into the concrete methods that no explicit registration on the same pattern
// claims.
func (r *Registry[T]) Routes() []Entry[T] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry[T], 0, len(r.entries))
	for _, e := range r.entries {
		if e.Method != MethodAll {
			out = append(out, e)
			continue
		}
		segs, _, _ := parsePattern(e.Pattern)
		slot := canonical(segs)
		for _, m := range Methods {
			if _, claimed := r.index[m+" "+slot]; claimed {
				continue
			}
			out = append(out, Entry[T]{Method: m, Pattern: e.Pattern, Value: e.Value})
		}
	}
	return out
}

// Len returns the number of registrations.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// JoinPath joins a mount prefix and a route pattern.
func JoinPath(prefix, pattern string) string {
	prefix = normalizePath(prefix)
	pattern = normalizePath(pattern)
	if prefix == "/" {
		return pattern
	}
	if pattern == "/" {
		return prefix
	}
	return prefix + pattern
}

// NormalizePath maps "" to "/" and drops trailing slashes.
func NormalizePath(p string) string {
	return normalizePath(p)
}
