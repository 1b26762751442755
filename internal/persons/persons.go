// Package persons is the built-in schema and resolvers served by gqlserve: a
// read-only list of people that can be filtered by name.
package persons

import (
	"context"
	"fmt"
	"strings"

	executor "github.com/hanpama/gqlserve/internal/executor"
	schema "github.com/hanpama/gqlserve/internal/schema"
)

const SDL = `type Query {
  persons(nameLike: String): [Person]
}

type Person {
  name: String
  age: Int
}
`

type Person struct {
	Name string
	Age  int
}

var records = []Person{
	{Name: "Ada", Age: 20},
	{Name: "Haskell", Age: 42},
}

// Schema builds the persons schema.
func Schema() *schema.Schema { return schema.MustBuildFromSDL(SDL) }

// Runtime resolves the persons schema. The zero value serves the built-in
// records.
type Runtime struct {
	people []Person
}

func NewRuntime() *Runtime { return &Runtime{people: records} }

// Find returns the people whose name contains nameLike, ignoring case, in
// insertion order. A nil nameLike returns everyone.
func (r *Runtime) Find(nameLike *string) []Person {
	people := r.people
	if people == nil {
		people = records
	}
	if nameLike == nil {
		return append([]Person(nil), people...)
	}
	needle := strings.ToLower(*nameLike)
	out := []Person{}
	for _, p := range people {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p)
		}
	}
	return out
}

func (r *Runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch objectType + "." + field {
	case "Query.persons":
		var nameLike *string
		if v, ok := args["nameLike"].(string); ok {
			nameLike = &v
		}
		return r.Find(nameLike), nil
	case "Person.name":
		return source.(Person).Name, nil
	case "Person.age":
		return source.(Person).Age, nil
	}
	return nil, fmt.Errorf("no resolver for %s.%s", objectType, field)
}

func (r *Runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return "", fmt.Errorf("persons schema has no abstract type %s", abstractType)
}

func (r *Runtime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	return executor.SerializeBuiltinScalar(typeName, value)
}
