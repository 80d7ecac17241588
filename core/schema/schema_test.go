package schema_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dmitrymomot/flowkit/core/schema"
)

func userSchema() *schema.Schema {
	return schema.Object(map[string]*schema.Schema{
		"name":  schema.String().MinLen(1).MaxLen(10),
		"email": schema.String().WithFormat("email"),
		"age":   schema.Integer().Min(0).Max(150),
		"role":  schema.String().OneOf("admin", "user"),
		"tags":  schema.Array(schema.String().Match(`^[a-z]+$`)),
		"address": schema.Object(map[string]*schema.Schema{
			"city": schema.String(),
		}, "city"),
	}, "name", "email")
}

func paths(vs []schema.Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Path)
	}
	return out
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  string
		paths []string
	}{
		{"valid", `{"name":"ada","email":"ada@example.com","age":36,"role":"admin","tags":["x"],"address":{"city":"london"}}`, nil},
		{"missing required", `{"name":"ada"}`, []string{"body.email"}},
		{"wrong type", `{"name":1,"email":"a@b.co"}`, []string{"body.name"}},
		{"too short", `{"name":"","email":"a@b.co"}`, []string{"body.name"}},
		{"too long", `{"name":"abcdefghijk","email":"a@b.co"}`, []string{"body.name"}},
		{"bad email", `{"name":"ada","email":"nope"}`, []string{"body.email"}},
		{"non integer", `{"name":"ada","email":"a@b.co","age":1.5}`, []string{"body.age"}},
		{"below minimum", `{"name":"ada","email":"a@b.co","age":-1}`, []string{"body.age"}},
		{"not in enum", `{"name":"ada","email":"a@b.co","role":"root"}`, []string{"body.role"}},
		{"array item", `{"name":"ada","email":"a@b.co","tags":["ok","NO"]}`, []string{"body.tags.1"}},
		{"nested required", `{"name":"ada","email":"a@b.co","address":{}}`, []string{"body.address.city"}},
		{"not an object", `[]`, []string{"body"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := userSchema().ValidateJSON([]byte(tt.body), "body", nil)
			if tt.paths == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.paths, paths(got))
		})
	}
}

func TestValidate_InvalidJSON(t *testing.T) {
	t.Parallel()

	got := userSchema().ValidateJSON([]byte(`{"name":`), "body", nil)
	require.Len(t, got, 1)
	assert.Equal(t, "body", got[0].Path)
}

func TestValidate_Strict(t *testing.T) {
	t.Parallel()

	s := schema.Object(map[string]*schema.Schema{"id": schema.String()}).Strict()
	got := s.ValidateJSON([]byte(`{"id":"1","extra":true}`), "query", nil)
	assert.Equal(t, []string{"query.extra"}, paths(got))
}

func TestValidate_Ref(t *testing.T) {
	t.Parallel()

	models := map[string]*schema.Schema{
		"User": schema.Object(map[string]*schema.Schema{"name": schema.String()}, "name"),
	}
	resolve := func(name string) (*schema.Schema, bool) {
		s, ok := models[name]
		return s, ok
	}

	list := schema.Array(schema.Ref("User"))
	got := list.Validate(gjson.Parse(`[{"name":"a"},{}]`), "body", resolve)
	assert.Equal(t, []string{"body.1.name"}, paths(got))

	got = schema.Ref("Missing").Validate(gjson.Parse(`{}`), "body", resolve)
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Message, "Missing")
}

func TestValidate_NilSchema(t *testing.T) {
	t.Parallel()

	var s *schema.Schema
	assert.Empty(t, s.ValidateJSON([]byte(`anything`), "body", nil))
}

func TestCoerce(t *testing.T) {
	t.Parallel()

	s := schema.Object(map[string]*schema.Schema{
		"page":   schema.Integer(),
		"ratio":  schema.Number(),
		"active": schema.Boolean(),
		"ids":    schema.Array(schema.Integer()),
		"q":      schema.String(),
	})

	doc, err := s.Coerce(map[string][]string{
		"page":    {"2"},
		"ratio":   {"0.5"},
		"active":  {"true"},
		"ids":     {"1", "2"},
		"q":       {"42"},
		"extra":   {"x"},
		"multi":   {"a", "b"},
		"dot.key": {"v"},
	}, nil)
	require.NoError(t, err)

	res := gjson.ParseBytes(doc)
	assert.Equal(t, int64(2), res.Get("page").Int())
	assert.Equal(t, gjson.Number, res.Get("page").Type)
	assert.InDelta(t, 0.5, res.Get("ratio").Float(), 0.0001)
	assert.Equal(t, gjson.True, res.Get("active").Type)
	assert.Equal(t, `[1,2]`, res.Get("ids").Raw)
	assert.Equal(t, gjson.String, res.Get("q").Type)
	assert.Equal(t, "x", res.Get("extra").String())
	assert.Equal(t, `["a","b"]`, res.Get("multi").Raw)
	assert.Equal(t, "v", res.Get(`dot\.key`).String())

	assert.Empty(t, s.ValidateJSON(doc, "query", nil))
}

func TestCoerce_InvalidNumberIsReported(t *testing.T) {
	t.Parallel()

	s := schema.Object(map[string]*schema.Schema{"id": schema.Integer()}, "id")
	doc, err := s.CoerceMap(map[string]string{"id": "abc"}, nil)
	require.NoError(t, err)

	got := s.ValidateJSON(doc, "params", nil)
	assert.Equal(t, []string{"params.id"}, paths(got))
}

func TestFromType(t *testing.T) {
	t.Parallel()

	type Address struct {
		City string `json:"city" required:"true"`
	}
	type User struct {
		Name      string    `json:"name" required:"true" minLength:"1" doc:"Display name"`
		Age       int       `json:"age,omitempty" minimum:"0"`
		Role      string    `json:"role" enum:"admin, user"`
		Tags      []string  `json:"tags" maxItems:"3"`
		Address   *Address  `json:"address"`
		CreatedAt time.Time `json:"created_at"`
		Secret    string    `json:"-"`
		internal  string
	}

	s := schema.FromType[User]()
	require.Equal(t, schema.TypeObject, s.Type)
	assert.Equal(t, []string{"name"}, s.Required)
	assert.Len(t, s.Properties, 6)
	assert.Equal(t, "Display name", s.Properties["name"].Description)
	require.NotNil(t, s.Properties["name"].MinLength)
	assert.Equal(t, 1, *s.Properties["name"].MinLength)
	assert.Equal(t, schema.TypeInteger, s.Properties["age"].Type)
	assert.Equal(t, []any{"admin", "user"}, s.Properties["role"].Enum)
	assert.Equal(t, schema.TypeArray, s.Properties["tags"].Type)
	assert.Equal(t, []string{"city"}, s.Properties["address"].Required)
	assert.Equal(t, "date-time", s.Properties["created_at"].Format)

	got := s.ValidateJSON([]byte(`{"name":"","role":"guest"}`), "body", nil)
	assert.ElementsMatch(t, []string{"body.name", "body.role"}, paths(got))
}

func TestFromType_Recursive(t *testing.T) {
	t.Parallel()

	type Node struct {
		Value    int     `json:"value"`
		Children []*Node `json:"children"`
	}

	s := schema.FromType[Node]()
	require.NotNil(t, s.Properties["children"].Items)
	assert.Equal(t, schema.TypeObject, s.Properties["children"].Items.Type)
}
