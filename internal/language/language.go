// Package language wraps the gqlparser entry points used by the schema and
// executor packages.
package language

import (
	"bytes"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

type (
	Schema         = ast.Schema
	SchemaDocument = ast.SchemaDocument
	QueryDocument  = ast.QueryDocument
)

type Operation = ast.Operation

const (
	Query        Operation = ast.Query
	Mutation     Operation = ast.Mutation
	Subscription Operation = ast.Subscription
)

// LoadQuery parses source and validates it against sch.
func LoadQuery(sch *Schema, source string) (*QueryDocument, gqlerror.List) {
	return gqlparser.LoadQuery(sch, source)
}

// ParseSchema parses SDL without the built-in prelude.
func ParseSchema(name, source string) (*SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadSchema parses and validates SDL, merging in the built-in prelude types.
func LoadSchema(name, source string) (*Schema, error) {
	sch, err := gqlparser.LoadSchema(&ast.Source{Name: name, Input: source})
	if err != nil {
		return nil, err
	}
	return sch, nil
}

// FormatSchemaDocument renders doc back to SDL.
func FormatSchemaDocument(doc *SchemaDocument) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(doc)
	return buf.String()
}
