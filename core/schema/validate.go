package schema

import (
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"slices"
	"strconv"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/dmitrymomot/flowkit/core/cache"
)

// maxRefDepth bounds $ref chains to guard against cyclic models.
const maxRefDepth = 32

// Violation is a single validation failure located by a dotted path.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// patterns holds compiled schema patterns. Schemas are usually static, so
// the bound only matters for generated ones.
var patterns = cache.NewLRUCache[string, *regexp.Regexp](256)

func compiled(pattern string) (*regexp.Regexp, error) {
	if re, ok := patterns.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patterns.Put(pattern, re)
	return re, nil
}

// ValidateJSON validates a raw JSON document. root prefixes every violation
// path, e.g. "body". An empty or malformed document is reported at root.
func (s *Schema) ValidateJSON(raw []byte, root string, resolve Resolver) []Violation {
	if s == nil {
		return nil
	}
	if len(raw) == 0 {
		raw = []byte("null")
	}
	if !gjson.ValidBytes(raw) {
		return []Violation{{Path: rootPath(root), Message: "is not valid JSON"}}
	}
	return s.Validate(gjson.ParseBytes(raw), root, resolve)
}

// Validate checks doc against s and returns every violation found.
func (s *Schema) Validate(doc gjson.Result, root string, resolve Resolver) []Violation {
	if s == nil {
		return nil
	}
	v := &validator{resolve: resolve}
	v.check(s, doc, root, 0)
	return v.out
}

type validator struct {
	resolve Resolver
	out     []Violation
}

func (v *validator) fail(path, format string, args ...any) {
	v.out = append(v.out, Violation{Path: rootPath(path), Message: fmt.Sprintf(format, args...)})
}

func (v *validator) deref(s *Schema, path string, depth int) (*Schema, bool) {
	for s.Ref != "" {
		if depth > maxRefDepth {
			v.fail(path, "schema reference %q is too deep", s.Ref)
			return nil, false
		}
		if v.resolve == nil {
			v.fail(path, "unresolved schema reference %q", s.RefName())
			return nil, false
		}
		next, ok := v.resolve(s.RefName())
		if !ok || next == nil {
			v.fail(path, "unresolved schema reference %q", s.RefName())
			return nil, false
		}
		s = next
		depth++
	}
	return s, true
}

func (v *validator) check(s *Schema, doc gjson.Result, path string, depth int) {
	s, ok := v.deref(s, path, depth)
	if !ok {
		return
	}

	if !matchesType(s.Type, doc) {
		v.fail(path, "expected %s, got %s", s.Type, typeName(doc))
		return
	}

	if len(s.Enum) > 0 && !slices.ContainsFunc(s.Enum, func(e any) bool { return enumEqual(e, doc) }) {
		v.fail(path, "must be one of %v", s.Enum)
	}

	switch doc.Type {
	case gjson.String:
		v.checkString(s, doc.Str, path)
	case gjson.Number:
		if s.Minimum != nil && doc.Num < *s.Minimum {
			v.fail(path, "must be >= %v", *s.Minimum)
		}
		if s.Maximum != nil && doc.Num > *s.Maximum {
			v.fail(path, "must be <= %v", *s.Maximum)
		}
	case gjson.JSON:
		if doc.IsObject() {
			v.checkObject(s, doc, path, depth)
		} else if doc.IsArray() {
			v.checkArray(s, doc, path, depth)
		}
	}
}

func (v *validator) checkString(s *Schema, str, path string) {
	n := utf8.RuneCountInString(str)
	if s.MinLength != nil && n < *s.MinLength {
		v.fail(path, "must be at least %d characters", *s.MinLength)
	}
	if s.MaxLength != nil && n > *s.MaxLength {
		v.fail(path, "must be at most %d characters", *s.MaxLength)
	}
	if s.Pattern != "" {
		re, err := compiled(s.Pattern)
		if err != nil {
			v.fail(path, "invalid pattern %q", s.Pattern)
		} else if !re.MatchString(str) {
			v.fail(path, "must match pattern %s", s.Pattern)
		}
	}
	if s.Format == "email" {
		if _, err := mail.ParseAddress(str); err != nil {
			v.fail(path, "must be a valid email address")
		}
	}
}

func (v *validator) checkObject(s *Schema, doc gjson.Result, path string, depth int) {
	fields := make(map[string]gjson.Result)
	var keys []string
	doc.ForEach(func(k, val gjson.Result) bool {
		fields[k.Str] = val
		keys = append(keys, k.Str)
		return true
	})

	for _, name := range s.Required {
		if _, ok := fields[name]; !ok {
			v.fail(join(path, name), "is required")
		}
	}

	// Iterate properties in document order for stable output.
	for _, name := range keys {
		prop, declared := s.Properties[name]
		if !declared {
			if s.AdditionalProperties != nil && !*s.AdditionalProperties {
				v.fail(join(path, name), "is not allowed")
			}
			continue
		}
		v.check(prop, fields[name], join(path, name), depth)
	}
}

func (v *validator) checkArray(s *Schema, doc gjson.Result, path string, depth int) {
	items := doc.Array()
	if s.MinItems != nil && len(items) < *s.MinItems {
		v.fail(path, "must contain at least %d items", *s.MinItems)
	}
	if s.MaxItems != nil && len(items) > *s.MaxItems {
		v.fail(path, "must contain at most %d items", *s.MaxItems)
	}
	if s.Items == nil {
		return
	}
	for i, item := range items {
		v.check(s.Items, item, join(path, strconv.Itoa(i)), depth)
	}
}

func matchesType(typ string, doc gjson.Result) bool {
	switch typ {
	case "":
		return true
	case TypeString:
		return doc.Type == gjson.String
	case TypeNumber:
		return doc.Type == gjson.Number
	case TypeInteger:
		return doc.Type == gjson.Number && doc.Num == math.Trunc(doc.Num)
	case TypeBoolean:
		return doc.Type == gjson.True || doc.Type == gjson.False
	case TypeNull:
		return doc.Type == gjson.Null && doc.Exists()
	case TypeObject:
		return doc.IsObject()
	case TypeArray:
		return doc.IsArray()
	}
	return false
}

func typeName(doc gjson.Result) string {
	switch {
	case !doc.Exists():
		return "nothing"
	case doc.Type == gjson.String:
		return TypeString
	case doc.Type == gjson.Number:
		return TypeNumber
	case doc.Type == gjson.True, doc.Type == gjson.False:
		return TypeBoolean
	case doc.Type == gjson.Null:
		return TypeNull
	case doc.IsArray():
		return TypeArray
	case doc.IsObject():
		return TypeObject
	}
	return "unknown"
}

func enumEqual(e any, doc gjson.Result) bool {
	switch ev := e.(type) {
	case string:
		return doc.Type == gjson.String && doc.Str == ev
	case bool:
		return (doc.Type == gjson.True && ev) || (doc.Type == gjson.False && !ev)
	case nil:
		return doc.Type == gjson.Null
	}
	if f, ok := toFloat(e); ok {
		return doc.Type == gjson.Number && doc.Num == f
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func rootPath(path string) string {
	if path == "" {
		return "$"
	}
	return path
}
