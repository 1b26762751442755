package executor

import (
	"github.com/vektah/gqlparser/v2/ast"
)

// collectedFieldMap preserves field order from the original query
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseName string
	Fields       []*ast.Field
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{
		fields: make([]collectedField, 0),
		index:  make(map[string]int),
	}
}

func (cfm *collectedFieldMap) add(responseName string, field *ast.Field) {
	if idx, exists := cfm.index[responseName]; exists {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
		return
	}
	cfm.index[responseName] = len(cfm.fields)
	cfm.fields = append(cfm.fields, collectedField{
		ResponseName: responseName,
		Fields:       []*ast.Field{field},
	})
}

func (cfm *collectedFieldMap) orderedFields() []collectedField {
	return cfm.fields
}

// collectFields groups the fields of selectionSet that apply to objectType by
// response name, in document order.
func (s *executionState) collectFields(objectType *ast.Definition, selectionSet ast.SelectionSet) *collectedFieldMap {
	groupedFields := newCollectedFieldMap()
	s.collectFieldsImpl(objectType, selectionSet, groupedFields, make(map[string]bool))
	return groupedFields
}

func (s *executionState) collectFieldsImpl(objectType *ast.Definition, selectionSet ast.SelectionSet, groupedFields *collectedFieldMap, visitedFragments map[string]bool) {
	for _, selection := range selectionSet {
		switch sel := selection.(type) {
		case *ast.Field:
			if !s.shouldIncludeNode(sel.Directives) {
				continue
			}
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			groupedFields.add(responseName, sel)

		case *ast.InlineFragment:
			if !s.shouldIncludeNode(sel.Directives) {
				continue
			}
			if !s.doesFragmentConditionMatch(sel.TypeCondition, objectType) {
				continue
			}
			s.collectFieldsImpl(objectType, sel.SelectionSet, groupedFields, visitedFragments)

		case *ast.FragmentSpread:
			if !s.shouldIncludeNode(sel.Directives) {
				continue
			}
			if visitedFragments[sel.Name] {
				continue
			}
			visitedFragments[sel.Name] = true

			fragmentDef := s.document.Fragments.ForName(sel.Name)
			if fragmentDef == nil {
				continue
			}
			if !s.doesFragmentConditionMatch(fragmentDef.TypeCondition, objectType) {
				continue
			}
			s.collectFieldsImpl(objectType, fragmentDef.SelectionSet, groupedFields, visitedFragments)
		}
	}
}

func (s *executionState) doesFragmentConditionMatch(typeCondition string, objectType *ast.Definition) bool {
	if typeCondition == "" || typeCondition == objectType.Name {
		return true
	}
	conditional := s.schema.Type(typeCondition)
	if conditional == nil || !conditional.IsAbstractType() {
		return false
	}
	return s.schema.IsPossibleType(conditional, objectType)
}

// shouldIncludeNode checks @skip and @include.
func (s *executionState) shouldIncludeNode(directives ast.DirectiveList) bool {
	if skip := directives.ForName("skip"); skip != nil {
		if v, ok := s.directiveIf(skip); ok && v {
			return false
		}
	}
	if include := directives.ForName("include"); include != nil {
		if v, ok := s.directiveIf(include); ok && !v {
			return false
		}
	}
	return true
}

func (s *executionState) directiveIf(directive *ast.Directive) (bool, bool) {
	arg := directive.Arguments.ForName("if")
	if arg == nil || arg.Value == nil {
		return false, false
	}
	v, err := arg.Value.Value(s.variables)
	if err != nil {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
