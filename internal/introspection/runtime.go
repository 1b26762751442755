package introspection

import (
	"context"
	"sort"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	executor "github.com/hanpama/gqlserve/internal/executor"
	schema "github.com/hanpama/gqlserve/internal/schema"
)

// Wrap returns a Runtime that answers __schema, __type and every field of the
// introspection types, and delegates everything else to base.
func Wrap(base executor.Runtime, sch *schema.Schema) executor.Runtime {
	return &runtime{base: base, schema: sch.AST(), enabled: true}
}

// Disable returns a Runtime that rejects __schema and __type with a field
// error. __typename is unaffected.
func Disable(base executor.Runtime, sch *schema.Schema) executor.Runtime {
	return &runtime{base: base, schema: sch.AST()}
}

type runtime struct {
	base    executor.Runtime
	schema  *ast.Schema
	enabled bool
}

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	if r.schema.Query != nil && objectType == r.schema.Query.Name && isIntrospectionName(field) {
		if !r.enabled {
			return nil, gqlerror.Errorf("introspection is disabled")
		}
		switch field {
		case "__schema":
			return r.schema, nil
		case "__type":
			name, _ := args["name"].(string)
			if def := r.schema.Types[name]; def != nil {
				return def, nil
			}
			return nil, nil
		}
	}

	switch src := source.(type) {
	case *ast.Schema:
		if v, ok := r.resolveSchemaField(src, field); ok {
			return v, nil
		}
	case *ast.Definition:
		if v, ok := r.resolveTypeField(src, field, args); ok {
			return v, nil
		}
	case *typeRef:
		if v, ok := r.resolveTypeRefField(src, field); ok {
			return v, nil
		}
	case *ast.FieldDefinition:
		if v, ok := r.resolveFieldField(src, field, args); ok {
			return v, nil
		}
	case *inputValue:
		if v, ok := r.resolveInputValueField(src, field); ok {
			return v, nil
		}
	case *ast.EnumValueDefinition:
		if v, ok := resolveEnumValueField(src, field); ok {
			return v, nil
		}
	case *ast.DirectiveDefinition:
		if v, ok := resolveDirectiveField(src, field, args); ok {
			return v, nil
		}
	}

	return r.base.ResolveSync(ctx, objectType, field, source, args)
}

func (r *runtime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.base.ResolveType(ctx, abstractType, value)
}

func (r *runtime) SerializeLeafValue(ctx context.Context, typ string, value any) (any, error) {
	if isIntrospectionName(typ) {
		return executor.SerializeBuiltinScalar(typ, value)
	}
	return r.base.SerializeLeafValue(ctx, typ, value)
}

func (r *runtime) resolveSchemaField(sch *ast.Schema, field string) (any, bool) {
	switch field {
	case "description":
		if sch.Description == "" {
			return nil, true
		}
		return sch.Description, true
	case "types":
		types := make([]*ast.Definition, 0, len(sch.Types))
		for _, def := range sch.Types {
			types = append(types, def)
		}
		sortDefinitions(types)
		return types, true
	case "queryType":
		return sch.Query, true
	case "mutationType":
		return sch.Mutation, true
	case "subscriptionType":
		return sch.Subscription, true
	case "directives":
		dirs := make([]*ast.DirectiveDefinition, 0, len(sch.Directives))
		for _, d := range sch.Directives {
			dirs = append(dirs, d)
		}
		sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
		return dirs, true
	}
	return nil, false
}

func (r *runtime) resolveTypeField(def *ast.Definition, field string, args map[string]any) (any, bool) {
	switch field {
	case "kind":
		return string(def.Kind), true
	case "name":
		return def.Name, true
	case "description":
		if def.Description == "" {
			return nil, true
		}
		return def.Description, true
	case "specifiedByURL":
		return specifiedByURL(def), true
	case "fields":
		if def.Kind != ast.Object && def.Kind != ast.Interface {
			return nil, true
		}
		includeDeprecated := boolArg(args, "includeDeprecated", false)
		out := []*ast.FieldDefinition{}
		for _, f := range def.Fields {
			if isIntrospectionName(f.Name) || (!includeDeprecated && isDeprecated(f.Directives)) {
				continue
			}
			out = append(out, f)
		}
		return out, true
	case "interfaces":
		if def.Kind != ast.Object && def.Kind != ast.Interface {
			return nil, true
		}
		return definitionsByName(r.schema, def.Interfaces), true
	case "possibleTypes":
		if !def.IsAbstractType() {
			return nil, true
		}
		possible := append([]*ast.Definition(nil), r.schema.GetPossibleTypes(def)...)
		sortDefinitions(possible)
		return possible, true
	case "enumValues":
		if def.Kind != ast.Enum {
			return nil, true
		}
		includeDeprecated := boolArg(args, "includeDeprecated", false)
		out := []*ast.EnumValueDefinition{}
		for _, ev := range def.EnumValues {
			if !includeDeprecated && isDeprecated(ev.Directives) {
				continue
			}
			out = append(out, ev)
		}
		return out, true
	case "inputFields":
		if def.Kind != ast.InputObject {
			return nil, true
		}
		return filterDeprecated(inputFieldValues(def.Fields), args), true
	case "ofType":
		return nil, true
	case "isOneOf":
		return def.Directives.ForName("oneOf") != nil, true
	}
	return nil, false
}

func (r *runtime) resolveTypeRefField(ref *typeRef, field string) (any, bool) {
	switch field {
	case "kind":
		return ref.kind, true
	case "ofType":
		return typeOf(r.schema, ref.ofType), true
	case "name", "description", "specifiedByURL", "fields", "interfaces", "possibleTypes", "enumValues", "inputFields", "isOneOf":
		return nil, true
	}
	return nil, false
}

func (r *runtime) resolveFieldField(f *ast.FieldDefinition, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return f.Name, true
	case "description":
		if f.Description == "" {
			return nil, true
		}
		return f.Description, true
	case "args":
		return filterDeprecated(argumentValues(f.Arguments), args), true
	case "type":
		return typeOf(r.schema, f.Type), true
	case "isDeprecated":
		return isDeprecated(f.Directives), true
	case "deprecationReason":
		return deprecationReason(f.Directives), true
	}
	return nil, false
}

func (r *runtime) resolveInputValueField(v *inputValue, field string) (any, bool) {
	switch field {
	case "name":
		return v.name, true
	case "description":
		if v.description == "" {
			return nil, true
		}
		return v.description, true
	case "type":
		return typeOf(r.schema, v.typ), true
	case "defaultValue":
		if v.defaultValue == nil {
			return nil, true
		}
		return v.defaultValue.String(), true
	case "isDeprecated":
		return isDeprecated(v.directives), true
	case "deprecationReason":
		return deprecationReason(v.directives), true
	}
	return nil, false
}

func resolveEnumValueField(ev *ast.EnumValueDefinition, field string) (any, bool) {
	switch field {
	case "name":
		return ev.Name, true
	case "description":
		if ev.Description == "" {
			return nil, true
		}
		return ev.Description, true
	case "isDeprecated":
		return isDeprecated(ev.Directives), true
	case "deprecationReason":
		return deprecationReason(ev.Directives), true
	}
	return nil, false
}

func resolveDirectiveField(d *ast.DirectiveDefinition, field string, args map[string]any) (any, bool) {
	switch field {
	case "name":
		return d.Name, true
	case "description":
		if d.Description == "" {
			return nil, true
		}
		return d.Description, true
	case "isRepeatable":
		return d.IsRepeatable, true
	case "locations":
		locs := make([]string, len(d.Locations))
		for i, l := range d.Locations {
			locs[i] = string(l)
		}
		return locs, true
	case "args":
		return filterDeprecated(argumentValues(d.Arguments), args), true
	}
	return nil, false
}

func filterDeprecated(values []*inputValue, args map[string]any) []*inputValue {
	if boolArg(args, "includeDeprecated", false) {
		return values
	}
	out := values[:0]
	for _, v := range values {
		if !isDeprecated(v.directives) {
			out = append(out, v)
		}
	}
	return out
}

func boolArg(args map[string]any, name string, def bool) bool {
	if args == nil {
		return def
	}
	if v, ok := args[name]; ok {
		if b, ok2 := v.(bool); ok2 {
			return b
		}
	}
	return def
}
