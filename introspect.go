package flowkit

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/flowkit/core/lifecycle"
	"github.com/dmitrymomot/flowkit/core/schema"
)

// RouteInfo describes a registered route for documentation tooling.
type RouteInfo struct {
	Method      string         `json:"method" yaml:"method"`
	Pattern     string         `json:"pattern" yaml:"pattern"`
	OperationID string         `json:"operationId" yaml:"operationId"`
	Summary     string         `json:"summary,omitempty" yaml:"summary,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string       `json:"tags,omitempty" yaml:"tags,omitempty"`
	Hooks       map[string]int `json:"hooks,omitempty" yaml:"hooks,omitempty"`
	Schema      RouteSchema    `json:"schema" yaml:"schema"`
}

// RouteSchema is the declared contract of a route.
type RouteSchema struct {
	Body     *schema.Schema         `json:"body,omitempty" yaml:"body,omitempty"`
	Query    *schema.Schema         `json:"query,omitempty" yaml:"query,omitempty"`
	Params   *schema.Schema         `json:"params,omitempty" yaml:"params,omitempty"`
	Response map[int]*schema.Schema `json:"response,omitempty" yaml:"response,omitempty"`
}

// Routes lists the routes in registration order with ALL routes expanded to
// every method they serve. The result is stable until routes are added.
func (a *App) Routes() []RouteInfo {
	entries := a.routes.Routes()
	out := make([]RouteInfo, 0, len(entries))
	for _, e := range entries {
		rt := e.Value
		spec := rt.spec
		comp := rt.compose()

		hooks := make(map[string]int)
		for event, hs := range comp.hooks {
			if len(hs) > 0 {
				hooks[string(event)] = len(hs)
			}
		}
		if n := len(comp.errors); n > 0 {
			hooks[string(lifecycle.EventError)] = n
		}

		id := spec.operationID
		if id == "" {
			id = operationID(e.Method, e.Pattern)
		}
		out = append(out, RouteInfo{
			Method:      e.Method,
			Pattern:     e.Pattern,
			OperationID: id,
			Summary:     spec.summary,
			Description: spec.description,
			Tags:        spec.tags,
			Hooks:       hooks,
			Schema: RouteSchema{
				Body:     spec.body,
				Query:    spec.query,
				Params:   spec.params,
				Response: spec.responses,
			},
		})
	}
	return out
}

// operationID derives an identifier such as getUsersById from a method and
// pattern. The root path maps to <method>Index.
func operationID(method, pattern string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))

	// Casers are stateful and not shared between goroutines
	title := cases.Title(language.Und, cases.NoLower)
	segs := strings.FieldsFunc(pattern, func(r rune) bool { return r == '/' })
	if len(segs) == 0 {
		b.WriteString("Index")
		return b.String()
	}
	for _, seg := range segs {
		switch {
		case seg == "*":
			b.WriteString("Wildcard")
		case strings.HasPrefix(seg, ":"):
			b.WriteString("By")
			b.WriteString(title.String(alnum(strings.TrimSuffix(seg[1:], "?"))))
		default:
			b.WriteString(title.String(alnum(seg)))
		}
	}
	return b.String()
}

// alnum keeps letters and digits, capitalizing the letter after each removed
// separator so that "user-profiles" becomes "userProfiles".
func alnum(s string) string {
	var b strings.Builder
	upper := false
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = b.Len() > 0
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
