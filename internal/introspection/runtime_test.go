package introspection

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	executor "github.com/hanpama/gqlserve/internal/executor"
	schema "github.com/hanpama/gqlserve/internal/schema"
)

const testSDL = `
"Root query"
type Query {
  hello(name: String = "you"): String
  legacy: String @deprecated(reason: "use hello")
  pet: Pet
}

interface Pet {
  name: String!
}

type Dog implements Pet {
  name: String!
}

enum Color {
  RED
  GREEN @deprecated
}

input Filter {
  color: Color = RED
}
`

func newExecutor(t *testing.T, wrap func(executor.Runtime, *schema.Schema) executor.Runtime) *executor.Executor {
	t.Helper()
	sch := schema.MustBuildFromSDL(testSDL)
	base := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("hi"),
	})
	exec, err := executor.NewExecutor(wrap(base, sch), sch)
	require.NoError(t, err)
	t.Cleanup(exec.Close)
	return exec
}

func query(t *testing.T, exec *executor.Executor, q string) (any, *executor.ExecutionResult) {
	t.Helper()
	res := exec.Execute(context.Background(), executor.Params{Query: q})
	b, err := json.Marshal(res.Data)
	require.NoError(t, err)
	var data any
	require.NoError(t, json.Unmarshal(b, &data))
	return data, res
}

// Pattern: Result comparison
func TestIntrospection_Result(t *testing.T) {
	exec := newExecutor(t, Wrap)

	tests := []struct {
		name  string
		query string
		want  any
	}{
		{
			name:  "Root types",
			query: `{ __schema { queryType { name } mutationType { name } subscriptionType { name } } }`,
			want: map[string]any{"__schema": map[string]any{
				"queryType":        map[string]any{"name": "Query"},
				"mutationType":     nil,
				"subscriptionType": nil,
			}},
		},
		{
			name:  "Fields and arguments",
			query: `{ __type(name: "Query") { kind name description fields { name isDeprecated args { name defaultValue type { kind name } } } } }`,
			want: map[string]any{"__type": map[string]any{
				"kind":        "OBJECT",
				"name":        "Query",
				"description": "Root query",
				"fields": []any{
					map[string]any{
						"name":         "hello",
						"isDeprecated": false,
						"args": []any{map[string]any{
							"name":         "name",
							"defaultValue": `"you"`,
							"type":         map[string]any{"kind": "SCALAR", "name": "String"},
						}},
					},
					map[string]any{"name": "pet", "isDeprecated": false, "args": []any{}},
				},
			}},
		},
		{
			name:  "Deprecated fields",
			query: `{ __type(name: "Query") { fields(includeDeprecated: true) { name deprecationReason } } }`,
			want: map[string]any{"__type": map[string]any{"fields": []any{
				map[string]any{"name": "hello", "deprecationReason": nil},
				map[string]any{"name": "legacy", "deprecationReason": "use hello"},
				map[string]any{"name": "pet", "deprecationReason": nil},
			}}},
		},
		{
			name:  "Wrapped types and interfaces",
			query: `{ __type(name: "Dog") { interfaces { name } fields { type { kind name ofType { kind name } } } } }`,
			want: map[string]any{"__type": map[string]any{
				"interfaces": []any{map[string]any{"name": "Pet"}},
				"fields": []any{map[string]any{"type": map[string]any{
					"kind":   "NON_NULL",
					"name":   nil,
					"ofType": map[string]any{"kind": "SCALAR", "name": "String"},
				}}},
			}},
		},
		{
			name:  "Possible types",
			query: `{ __type(name: "Pet") { kind possibleTypes { name } fields { name } } }`,
			want: map[string]any{"__type": map[string]any{
				"kind":          "INTERFACE",
				"possibleTypes": []any{map[string]any{"name": "Dog"}},
				"fields":        []any{map[string]any{"name": "name"}},
			}},
		},
		{
			name:  "Enum values",
			query: `{ __type(name: "Color") { a: enumValues { name } b: enumValues(includeDeprecated: true) { name isDeprecated deprecationReason } } }`,
			want: map[string]any{"__type": map[string]any{
				"a": []any{map[string]any{"name": "RED"}},
				"b": []any{
					map[string]any{"name": "RED", "isDeprecated": false, "deprecationReason": nil},
					map[string]any{"name": "GREEN", "isDeprecated": true, "deprecationReason": "No longer supported"},
				},
			}},
		},
		{
			name:  "Input fields",
			query: `{ __type(name: "Filter") { kind fields { name } inputFields { name defaultValue type { name } } } }`,
			want: map[string]any{"__type": map[string]any{
				"kind":   "INPUT_OBJECT",
				"fields": nil,
				"inputFields": []any{map[string]any{
					"name":         "color",
					"defaultValue": "RED",
					"type":         map[string]any{"name": "Color"},
				}},
			}},
		},
		{
			name:  "Unknown type",
			query: `{ __type(name: "Nope") { name } }`,
			want:  map[string]any{"__type": nil},
		},
		{
			name:  "Mixed with regular fields",
			query: `{ hello __typename }`,
			want:  map[string]any{"hello": "hi", "__typename": "Query"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, res := query(t, exec, tt.query)
			require.Empty(t, res.Errors)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestIntrospection_SchemaListings(t *testing.T) {
	exec := newExecutor(t, Wrap)

	got, res := query(t, exec, `{ __schema { types { name } directives { name locations } } }`)
	require.Empty(t, res.Errors)

	sch := got.(map[string]any)["__schema"].(map[string]any)
	var types []string
	for _, tp := range sch["types"].([]any) {
		types = append(types, tp.(map[string]any)["name"].(string))
	}
	assert.IsIncreasing(t, types)
	assert.Subset(t, types, []string{"Query", "Dog", "Pet", "Color", "Filter", "String", "__Schema", "__Type"})

	var directives []string
	for _, d := range sch["directives"].([]any) {
		directives = append(directives, d.(map[string]any)["name"].(string))
	}
	assert.Subset(t, directives, []string{"skip", "include", "deprecated"})
}

func TestIntrospection_Disabled(t *testing.T) {
	exec := newExecutor(t, Disable)

	t.Run("Schema query fails", func(t *testing.T) {
		got, res := query(t, exec, `{ __schema { queryType { name } } }`)
		assert.Nil(t, got)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "introspection is disabled", res.Errors[0].Message)
	})

	t.Run("Type query is nulled", func(t *testing.T) {
		got, res := query(t, exec, `{ hello __type(name: "Query") { name } }`)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, map[string]any{"hello": "hi", "__type": nil}, got)
	})

	t.Run("Typename still works", func(t *testing.T) {
		got, res := query(t, exec, `{ __typename }`)
		require.Empty(t, res.Errors)
		assert.Equal(t, map[string]any{"__typename": "Query"}, got)
	})
}
