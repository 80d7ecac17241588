package router

// Segment tree derived from the radix routing tree of go-chi/chi (MIT licensed).
// Nodes hold one path segment each; children are grouped by node type so that
// lookups try them in precedence order.

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

type methodTyp uint

const (
	mCONNECT methodTyp = 1 << iota
	mDELETE
	mGET
	mHEAD
	mOPTIONS
	mPATCH
	mPOST
	mPUT
	mTRACE
	mALL
)

// MethodAll registers a route for every method not claimed by an explicit
// registration on the same pattern.
const MethodAll = "ALL"

var methodMap = map[string]methodTyp{
	http.MethodConnect: mCONNECT,
	http.MethodDelete:  mDELETE,
	http.MethodGet:     mGET,
	http.MethodHead:    mHEAD,
	http.MethodOptions: mOPTIONS,
	http.MethodPatch:   mPATCH,
	http.MethodPost:    mPOST,
	http.MethodPut:     mPUT,
	http.MethodTrace:   mTRACE,
	MethodAll:          mALL,
}

// Methods lists the concrete methods an ALL route expands into, in listing order.
var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
	http.MethodHead,
	http.MethodOptions,
	http.MethodConnect,
	http.MethodTrace,
}

type nodeTyp uint8

const (
	ntStatic   nodeTyp = iota // /home
	ntParam                   // /:id
	ntOptional                // /:id?
	ntCatchAll                // /files/*
)

type segment struct {
	typ   nodeTyp
	value string // literal text or parameter key
}

type node[T any] struct {
	// child nodes grouped by type; static children are sorted by label
	children [ntCatchAll + 1][]*node[T]

	// endpoints registered on this node, keyed by method
	endpoints map[methodTyp]*endpoint[T]

	// literal segment for static nodes
	label string

	typ nodeTyp
}

type endpoint[T any] struct {
	value     T
	pattern   string
	paramKeys []string
}

// capture is a parameter value collected during lookup. ok is false when an
// optional parameter was skipped.
type capture struct {
	value string
	ok    bool
}

// normalizePath maps "" to "/" and drops trailing slashes.
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	for len(p) > 1 && p[len(p)-1] == '/' {
		p = p[:len(p)-1]
	}
	return p
}

func splitPath(p string) []string {
	p = normalizePath(p)
	if p == "/" {
		return nil
	}
	return strings.Split(p[1:], "/")
}

// splitRequestPath splits an escaped request path and unescapes each
// segment, so an encoded slash stays inside its segment. Segments that are
// not valid escapes are used as is.
func splitRequestPath(p string) []string {
	segs := splitPath(p)
	for i, seg := range segs {
		if !strings.Contains(seg, "%") {
			continue
		}
		if u, err := url.PathUnescape(seg); err == nil {
			segs[i] = u
		}
	}
	return segs
}

func parsePattern(pattern string) ([]segment, []string, error) {
	parts := splitPath(pattern)
	segs := make([]segment, 0, len(parts))
	var keys []string

	for i, part := range parts {
		switch {
		case part == "*":
			if i != len(parts)-1 {
				return nil, nil, fmt.Errorf("%w: %q", ErrWildcardPosition, pattern)
			}
			segs = append(segs, segment{typ: ntCatchAll, value: "*"})
			keys = append(keys, "*")

		case strings.HasPrefix(part, ":"):
			key := part[1:]
			typ := ntParam
			if strings.HasSuffix(key, "?") {
				key = key[:len(key)-1]
				typ = ntOptional
			}
			if key == "" {
				return nil, nil, fmt.Errorf("%w: empty parameter name in %q", ErrInvalidPattern, pattern)
			}
			if slices.Contains(keys, key) {
				return nil, nil, fmt.Errorf("%w: %q in %q", ErrDuplicateParam, key, pattern)
			}
			segs = append(segs, segment{typ: typ, value: key})
			keys = append(keys, key)

		default:
			if strings.Contains(part, "*") {
				return nil, nil, fmt.Errorf("%w: %q", ErrWildcardPosition, pattern)
			}
			segs = append(segs, segment{typ: ntStatic, value: part})
		}
	}
	return segs, keys, nil
}

// canonical returns a key identifying the tree slot a pattern occupies,
// ignoring parameter names.
func canonical(segs []segment) string {
	var b strings.Builder
	for _, s := range segs {
		b.WriteByte('/')
		switch s.typ {
		case ntStatic:
			b.WriteString(s.value)
		case ntParam:
			b.WriteString(":")
		case ntOptional:
			b.WriteString(":?")
		case ntCatchAll:
			b.WriteString("*")
		}
	}
	if b.Len() == 0 {
		return "/"
	}
	return b.String()
}

func (n *node[T]) insert(method methodTyp, segs []segment, ep *endpoint[T]) {
	cur := n
	for _, s := range segs {
		cur = cur.child(s)
	}
	if cur.endpoints == nil {
		cur.endpoints = make(map[methodTyp]*endpoint[T])
	}
	cur.endpoints[method] = ep
}

// child returns the child matching s, creating it when missing.
func (n *node[T]) child(s segment) *node[T] {
	group := n.children[s.typ]
	if s.typ != ntStatic {
		// Parameter nodes are shared regardless of the parameter name
		if len(group) > 0 {
			return group[0]
		}
		c := &node[T]{typ: s.typ}
		n.children[s.typ] = append(group, c)
		return c
	}

	idx, found := slices.BinarySearchFunc(group, s.value, func(c *node[T], label string) int {
		return strings.Compare(c.label, label)
	})
	if found {
		return group[idx]
	}
	c := &node[T]{typ: ntStatic, label: s.value}
	n.children[ntStatic] = slices.Insert(group, idx, c)
	return c
}

func (n *node[T]) staticChild(label string) *node[T] {
	group := n.children[ntStatic]
	idx, found := slices.BinarySearchFunc(group, label, func(c *node[T], label string) int {
		return strings.Compare(c.label, label)
	})
	if !found {
		return nil
	}
	return group[idx]
}

// endpoint returns the handler for method, falling back to an ALL registration.
func (n *node[T]) endpoint(method methodTyp) *endpoint[T] {
	if n.endpoints == nil {
		return nil
	}
	if ep, ok := n.endpoints[method]; ok && method != 0 {
		return ep
	}
	return n.endpoints[mALL]
}

// find walks the tree in precedence order, backtracking when a branch has no
// endpoint for method.
func (n *node[T]) find(method methodTyp, segs []string, caps []capture) (*endpoint[T], []capture) {
	if len(segs) == 0 {
		if ep := n.endpoint(method); ep != nil {
			return ep, caps
		}
		for _, c := range n.children[ntOptional] {
			if ep, out := c.find(method, segs, append(caps, capture{})); ep != nil {
				return ep, out
			}
		}
		for _, c := range n.children[ntCatchAll] {
			if ep := c.endpoint(method); ep != nil {
				return ep, append(caps, capture{ok: true})
			}
		}
		return nil, nil
	}

	seg := segs[0]

	if c := n.staticChild(seg); c != nil {
		if ep, out := c.find(method, segs[1:], caps); ep != nil {
			return ep, out
		}
	}

	if seg != "" {
		for _, c := range n.children[ntParam] {
			if ep, out := c.find(method, segs[1:], append(caps, capture{value: seg, ok: true})); ep != nil {
				return ep, out
			}
		}
		for _, c := range n.children[ntOptional] {
			if ep, out := c.find(method, segs[1:], append(caps, capture{value: seg, ok: true})); ep != nil {
				return ep, out
			}
		}
	}

	// An optional parameter may be skipped without consuming the segment
	for _, c := range n.children[ntOptional] {
		if ep, out := c.find(method, segs, append(caps, capture{})); ep != nil {
			return ep, out
		}
	}

	for _, c := range n.children[ntCatchAll] {
		if ep := c.endpoint(method); ep != nil {
			return ep, append(caps, capture{value: strings.Join(segs, "/"), ok: true})
		}
	}

	return nil, nil
}
