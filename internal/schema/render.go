package schema

import language "github.com/hanpama/gqlserve/internal/language"

// Render returns the SDL of s. Built-in scalars, directives and introspection
// fields are omitted.
func Render(s *Schema) string {
	return language.FormatSchemaDocument(s.doc)
}
