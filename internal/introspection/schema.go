package introspection

import (
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

const defaultDeprecationReason = "No longer supported"

// typeRef is a LIST or NON_NULL wrapper seen through __Type. Named types are
// exposed as their *ast.Definition.
type typeRef struct {
	kind   string
	ofType *ast.Type
}

// inputValue is an argument or input field seen through __InputValue.
type inputValue struct {
	name         string
	description  string
	typ          *ast.Type
	defaultValue *ast.Value
	directives   ast.DirectiveList
}

// typeOf maps a type reference to the value resolved for a __Type field.
func typeOf(sch *ast.Schema, t *ast.Type) any {
	if t == nil {
		return nil
	}
	if t.NonNull {
		inner := *t
		inner.NonNull = false
		return &typeRef{kind: "NON_NULL", ofType: &inner}
	}
	if t.Elem != nil {
		return &typeRef{kind: "LIST", ofType: t.Elem}
	}
	if def := sch.Types[t.NamedType]; def != nil {
		return def
	}
	return nil
}

func argumentValues(defs ast.ArgumentDefinitionList) []*inputValue {
	out := make([]*inputValue, 0, len(defs))
	for _, d := range defs {
		out = append(out, &inputValue{
			name:         d.Name,
			description:  d.Description,
			typ:          d.Type,
			defaultValue: d.DefaultValue,
			directives:   d.Directives,
		})
	}
	return out
}

func inputFieldValues(defs ast.FieldList) []*inputValue {
	out := make([]*inputValue, 0, len(defs))
	for _, d := range defs {
		out = append(out, &inputValue{
			name:         d.Name,
			description:  d.Description,
			typ:          d.Type,
			defaultValue: d.DefaultValue,
			directives:   d.Directives,
		})
	}
	return out
}

func isDeprecated(directives ast.DirectiveList) bool {
	return directives.ForName("deprecated") != nil
}

// deprecationReason returns the reason string, or nil when not deprecated.
func deprecationReason(directives ast.DirectiveList) any {
	d := directives.ForName("deprecated")
	if d == nil {
		return nil
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw
	}
	return defaultDeprecationReason
}

func specifiedByURL(def *ast.Definition) any {
	d := def.Directives.ForName("specifiedBy")
	if d == nil {
		return nil
	}
	if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
		return arg.Value.Raw
	}
	return nil
}

func definitionsByName(sch *ast.Schema, names []string) []*ast.Definition {
	out := make([]*ast.Definition, 0, len(names))
	for _, name := range names {
		if def := sch.Types[name]; def != nil {
			out = append(out, def)
		}
	}
	sortDefinitions(out)
	return out
}

func sortDefinitions(defs []*ast.Definition) {
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
}

func isIntrospectionName(name string) bool {
	return strings.HasPrefix(name, "__")
}
