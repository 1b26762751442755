package schema

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"

	language "github.com/hanpama/gqlserve/internal/language"
)

// Schema is an executable GraphQL schema. It keeps the validated schema used
// for execution next to the SDL document it was built from, so the schema can
// be rendered without the prelude and introspection fields gqlparser injects.
type Schema struct {
	def *ast.Schema
	doc *ast.SchemaDocument
}

// BuildFromSDL parses and validates sdl and returns the corresponding Schema.
func BuildFromSDL(sdl string) (*Schema, error) {
	doc, err := language.ParseSchema("schema.graphql", sdl)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	def, err := language.LoadSchema("schema.graphql", sdl)
	if err != nil {
		return nil, fmt.Errorf("validate schema: %w", err)
	}
	if def.Query == nil {
		return nil, fmt.Errorf("validate schema: no query root type")
	}
	return &Schema{def: def, doc: doc}, nil
}

// MustBuildFromSDL is like BuildFromSDL but panics on error.
func MustBuildFromSDL(sdl string) *Schema {
	s, err := BuildFromSDL(sdl)
	if err != nil {
		panic(err)
	}
	return s
}

// AST returns the validated gqlparser schema. Callers must not modify it.
func (s *Schema) AST() *ast.Schema { return s.def }

// Document returns the parsed SDL the schema was built from.
func (s *Schema) Document() *ast.SchemaDocument { return s.doc }

// QueryType returns the root query type.
func (s *Schema) QueryType() *ast.Definition { return s.def.Query }

// RootType returns the root type for op, or nil when the schema has none.
func (s *Schema) RootType(op ast.Operation) *ast.Definition {
	switch op {
	case ast.Query:
		return s.def.Query
	case ast.Mutation:
		return s.def.Mutation
	case ast.Subscription:
		return s.def.Subscription
	}
	return nil
}

// Type returns the named type, or nil.
func (s *Schema) Type(name string) *ast.Definition { return s.def.Types[name] }

// IsPossibleType reports whether object is abstract itself or one of its
// possible runtime types.
func (s *Schema) IsPossibleType(abstract, object *ast.Definition) bool {
	if abstract == nil || object == nil {
		return false
	}
	if abstract.Name == object.Name {
		return true
	}
	for _, t := range s.def.GetPossibleTypes(abstract) {
		if t.Name == object.Name {
			return true
		}
	}
	return false
}
