// Package schema implements the JSON Schema subset used to describe and
// validate route inputs and outputs.
//
// Schemas are plain values that can be built by hand, derived from Go types
// with FromType, or referenced by name with Ref and resolved against a model
// registry at validation time.
//
//	user := schema.Object(map[string]*schema.Schema{
//		"name":  schema.String().MinLen(1),
//		"email": schema.String().WithFormat("email"),
//		"age":   schema.Integer().Min(0),
//	}, "name", "email")
//
//	violations := user.ValidateJSON(body, "body", nil)
//	// [{Path: "body.email", Message: "is required"}]
//
// Validation walks documents with gjson without decoding them into Go
// values. Coerce converts string maps (query, path parameters, form fields)
// into a JSON document typed according to the schema, built with sjson.
package schema

import "strings"

// Type names a JSON Schema primitive type.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
	TypeNull    = "null"
)

// refPrefix is prepended to model names in $ref values.
const refPrefix = "#/components/schemas/"

// Schema is a JSON Schema object (subset).
type Schema struct {
	Type        string             `json:"type,omitempty" yaml:"type,omitempty"`
	Format      string             `json:"format,omitempty" yaml:"format,omitempty"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty" yaml:"properties,omitempty"`
	Required    []string           `json:"required,omitempty" yaml:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty" yaml:"items,omitempty"`
	Enum        []any              `json:"enum,omitempty" yaml:"enum,omitempty"`
	MinLength   *int               `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength   *int               `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Minimum     *float64           `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *float64           `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	MinItems    *int               `json:"minItems,omitempty" yaml:"minItems,omitempty"`
	MaxItems    *int               `json:"maxItems,omitempty" yaml:"maxItems,omitempty"`
	Pattern     string             `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Ref         string             `json:"$ref,omitempty" yaml:"$ref,omitempty"`

	// AdditionalProperties set to false rejects undeclared object keys.
	AdditionalProperties *bool `json:"additionalProperties,omitempty" yaml:"additionalProperties,omitempty"`
}

// Resolver looks up a named model for $ref resolution.
type Resolver func(name string) (*Schema, bool)

func String() *Schema  { return &Schema{Type: TypeString} }
func Number() *Schema  { return &Schema{Type: TypeNumber} }
func Integer() *Schema { return &Schema{Type: TypeInteger} }
func Boolean() *Schema { return &Schema{Type: TypeBoolean} }
func Null() *Schema    { return &Schema{Type: TypeNull} }
func Any() *Schema     { return &Schema{} }

// Object creates an object schema. required lists mandatory property names.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: TypeObject, Properties: props, Required: required}
}

// Array creates an array schema with the given item schema.
func Array(items *Schema) *Schema {
	return &Schema{Type: TypeArray, Items: items}
}

// Ref creates a reference to a model registered under name.
func Ref(name string) *Schema {
	return &Schema{Ref: refPrefix + name}
}

// RefName returns the model name a reference points to.
func (s *Schema) RefName() string {
	return strings.TrimPrefix(s.Ref, refPrefix)
}

func (s *Schema) MinLen(n int) *Schema {
	s.MinLength = &n
	return s
}

func (s *Schema) MaxLen(n int) *Schema {
	s.MaxLength = &n
	return s
}

func (s *Schema) Min(v float64) *Schema {
	s.Minimum = &v
	return s
}

func (s *Schema) Max(v float64) *Schema {
	s.Maximum = &v
	return s
}

func (s *Schema) Match(pattern string) *Schema {
	s.Pattern = pattern
	return s
}

func (s *Schema) OneOf(values ...any) *Schema {
	s.Enum = values
	return s
}

func (s *Schema) Describe(doc string) *Schema {
	s.Description = doc
	return s
}

// WithFormat sets the format annotation. Only "email" is checked during validation.
func (s *Schema) WithFormat(f string) *Schema {
	s.Format = f
	return s
}

// Strict rejects undeclared properties on object schemas.
func (s *Schema) Strict() *Schema {
	f := false
	s.AdditionalProperties = &f
	return s
}
