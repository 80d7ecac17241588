package schema

import (
	"reflect"
	"strconv"
	"strings"
	"time"
)

// FromType derives a schema from T.
//
// Struct fields use their json tag name. The following tags refine a field:
//
//	required:"true"   adds the field to the parent's required list
//	doc:"..."         sets the description
//	minLength, maxLength, minimum, maximum, minItems, maxItems, pattern
//	enum:"a,b,c"      restricts a string field to the listed values
func FromType[T any]() *Schema {
	return FromReflect(reflect.TypeFor[T]())
}

// FromReflect derives a schema from t. See FromType.
func FromReflect(t reflect.Type) *Schema {
	return typeToSchema(t, map[reflect.Type]bool{})
}

func typeToSchema(t reflect.Type, visiting map[reflect.Type]bool) *Schema {
	if t.Kind() == reflect.Pointer {
		return typeToSchema(t.Elem(), visiting)
	}

	switch t {
	case reflect.TypeFor[time.Time]():
		return &Schema{Type: TypeString, Format: "date-time"}
	case reflect.TypeFor[time.Duration]():
		return &Schema{Type: TypeString, Format: "duration"}
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String:
		return String()
	case reflect.Bool:
		return Boolean()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Integer()
	case reflect.Float32, reflect.Float64:
		return Number()
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return &Schema{Type: TypeString, Format: "byte"}
		}
		return Array(typeToSchema(t.Elem(), visiting))
	case reflect.Array:
		return Array(typeToSchema(t.Elem(), visiting))
	case reflect.Map:
		return &Schema{Type: TypeObject}
	case reflect.Struct:
		if visiting[t] {
			// Recursive type; leave the nested value unconstrained.
			return &Schema{Type: TypeObject}
		}
		visiting[t] = true
		defer delete(visiting, t)
		return structToSchema(t, visiting)
	default:
		return Any()
	}
}

func structToSchema(t reflect.Type, visiting map[reflect.Type]bool) *Schema {
	s := &Schema{
		Type:       TypeObject,
		Properties: make(map[string]*Schema),
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		name := jsonFieldName(f)
		if name == "-" {
			continue
		}

		prop := typeToSchema(f.Type, visiting)
		applyTags(prop, f.Tag)
		s.Properties[name] = prop

		if f.Tag.Get("required") == "true" {
			s.Required = append(s.Required, name)
		}
	}

	return s
}

func applyTags(s *Schema, tag reflect.StructTag) {
	if doc := tag.Get("doc"); doc != "" {
		s.Description = doc
	}
	if n, ok := intTag(tag, "minLength"); ok {
		s.MinLength = &n
	}
	if n, ok := intTag(tag, "maxLength"); ok {
		s.MaxLength = &n
	}
	if n, ok := intTag(tag, "minItems"); ok {
		s.MinItems = &n
	}
	if n, ok := intTag(tag, "maxItems"); ok {
		s.MaxItems = &n
	}
	if f, ok := floatTag(tag, "minimum"); ok {
		s.Minimum = &f
	}
	if f, ok := floatTag(tag, "maximum"); ok {
		s.Maximum = &f
	}
	if p := tag.Get("pattern"); p != "" {
		s.Pattern = p
	}
	if f := tag.Get("format"); f != "" {
		s.Format = f
	}
	if e := tag.Get("enum"); e != "" {
		for _, v := range strings.Split(e, ",") {
			s.Enum = append(s.Enum, strings.TrimSpace(v))
		}
	}
}

func intTag(tag reflect.StructTag, key string) (int, bool) {
	v := tag.Get(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func floatTag(tag reflect.StructTag, key string) (float64, bool) {
	v := tag.Get(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}
