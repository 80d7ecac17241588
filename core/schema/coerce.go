package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/sjson"
)

// Coerce builds a JSON object from string values, converting each value to
// the type its property declares. Values that fail conversion are kept as
// strings so that validation reports them against the declared type.
// Keys without a declared property are copied as strings, single values
// unwrapped.
func (s *Schema) Coerce(values map[string][]string, resolve Resolver) ([]byte, error) {
	doc := []byte("{}")
	var props map[string]*Schema
	if s != nil {
		if target, ok := derefQuiet(s, resolve); ok {
			props = target.Properties
		}
	}

	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		path := escapeKey(key)
		prop, ok := derefQuiet(props[key], resolve)

		var err error
		switch {
		case ok && prop.Type == TypeArray:
			var items *Schema
			if prop.Items != nil {
				items, _ = derefQuiet(prop.Items, resolve)
			}
			doc, err = sjson.SetRawBytes(doc, path, []byte("[]"))
			for _, raw := range vals {
				if err != nil {
					break
				}
				doc, err = sjson.SetBytes(doc, path+".-1", coerceScalar(items, raw))
			}
		case ok:
			doc, err = sjson.SetBytes(doc, path, coerceScalar(prop, vals[0]))
		case len(vals) == 1:
			doc, err = sjson.SetBytes(doc, path, vals[0])
		default:
			doc, err = sjson.SetBytes(doc, path, vals)
		}
		if err != nil {
			return nil, fmt.Errorf("coerce %q: %w", key, err)
		}
	}
	return doc, nil
}

// CoerceMap is Coerce for single-valued maps such as path parameters.
func (s *Schema) CoerceMap(values map[string]string, resolve Resolver) ([]byte, error) {
	multi := make(map[string][]string, len(values))
	for k, v := range values {
		multi[k] = []string{v}
	}
	return s.Coerce(multi, resolve)
}

func coerceScalar(s *Schema, raw string) any {
	if s == nil {
		return raw
	}
	switch s.Type {
	case TypeInteger:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case TypeNumber:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case TypeBoolean:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	case TypeNull:
		if raw == "" || raw == "null" {
			return nil
		}
	}
	return raw
}

func derefQuiet(s *Schema, resolve Resolver) (*Schema, bool) {
	for depth := 0; s != nil && s.Ref != ""; depth++ {
		if resolve == nil || depth > maxRefDepth {
			return nil, false
		}
		next, ok := resolve(s.RefName())
		if !ok {
			return nil, false
		}
		s = next
	}
	return s, s != nil
}

// escapeKey escapes sjson path syntax in a literal object key.
func escapeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', ':', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
