package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"

	language "github.com/hanpama/gqlserve/internal/language"
	schema "github.com/hanpama/gqlserve/internal/schema"
)

// Params is a single request to execute: the document text, the optional
// operation name (empty when absent) and the raw variables (nil when absent).
type Params struct {
	Query         string
	OperationName string
	Variables     map[string]any
}

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
	cache   *documentCache
}

type options struct {
	cacheSize int64
}

type Option func(*options)

// WithDocumentCache keeps up to entries validated documents keyed by their
// query text. 0 disables the cache.
func WithDocumentCache(entries int64) Option { return func(o *options) { o.cacheSize = entries } }

func NewExecutor(runtime Runtime, schema *schema.Schema, opts ...Option) (*Executor, error) {
	var o options
	for _, f := range opts {
		f(&o)
	}
	cache, err := newDocumentCache(o.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("document cache: %w", err)
	}
	return &Executor{runtime: runtime, schema: schema, cache: cache}, nil
}

// Close releases the document cache.
func (e *Executor) Close() { e.cache.close() }

// PanicError is reported by ExecuteAsync when execution panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("executor: panic during execution: %v", e.Value) }

// ExecuteAsync runs Execute on a new goroutine. The returned channel receives
// exactly one Outcome and is then closed.
func (e *Executor) ExecuteAsync(ctx context.Context, params Params) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				out <- Outcome{Err: &PanicError{Value: r, Stack: debug.Stack()}}
			}
		}()
		out <- Outcome{Result: e.Execute(ctx, params)}
	}()
	return out
}

// Execute parses, validates and executes params against the schema.
func (e *Executor) Execute(ctx context.Context, params Params) *ExecutionResult {
	document, errs := e.loadDocument(params.Query)
	if len(errs) > 0 {
		return &ExecutionResult{Errors: errs}
	}

	operation, gerr := getOperation(document, params.OperationName)
	if gerr != nil {
		return &ExecutionResult{Errors: gqlerror.List{gerr}}
	}
	result := &ExecutionResult{OperationType: string(operation.Operation)}

	if operation.Operation == language.Subscription {
		result.Errors = gqlerror.List{gqlerror.Errorf("subscriptions are not supported")}
		return result
	}
	rootType := e.schema.RootType(operation.Operation)
	if rootType == nil {
		result.Errors = gqlerror.List{gqlerror.Errorf("schema does not support %s operations", operation.Operation)}
		return result
	}

	variables, err := validator.VariableValues(e.schema.AST(), operation, normalizeNumbers(params.Variables))
	if err != nil {
		result.Errors = gqlerror.List{asGQLError(err)}
		return result
	}

	state := &executionState{
		ctx:       ctx,
		runtime:   e.runtime,
		schema:    e.schema,
		document:  document,
		variables: variables,
	}
	data, err := state.executeSelectionSet(rootType, operation.SelectionSet, nil, nil)
	if err != nil {
		state.errors = append(state.errors, asGQLError(err))
	}
	result.Data = data
	result.Errors = state.errors
	return result
}

func (e *Executor) loadDocument(query string) (*ast.QueryDocument, gqlerror.List) {
	if doc, ok := e.cache.get(query); ok {
		return doc, nil
	}
	doc, errs := language.LoadQuery(e.schema.AST(), query)
	if len(errs) > 0 {
		return nil, errs
	}
	e.cache.set(query, doc)
	return doc, nil
}

func getOperation(document *ast.QueryDocument, operationName string) (*ast.OperationDefinition, *gqlerror.Error) {
	if operationName == "" {
		switch len(document.Operations) {
		case 0:
			return nil, gqlerror.Errorf("document does not contain an operation")
		case 1:
			return document.Operations[0], nil
		default:
			return nil, gqlerror.Errorf("operation name is required when the document contains %d operations", len(document.Operations))
		}
	}
	if op := document.Operations.ForName(operationName); op != nil {
		return op, nil
	}
	return nil, gqlerror.Errorf("unknown operation named %q", operationName)
}

// executionState holds the state of one operation.
type executionState struct {
	ctx       context.Context
	runtime   Runtime
	schema    *schema.Schema
	document  *ast.QueryDocument
	variables map[string]any
	errors    gqlerror.List
}

// executeSelectionSet returns an error only when a Non-Null field inside it
// resolved to null, in which case the whole object is null.
func (s *executionState) executeSelectionSet(objectType *ast.Definition, selectionSet ast.SelectionSet, source any, path ast.Path) (*OrderedMap, error) {
	groupedFields := s.collectFields(objectType, selectionSet)
	result := NewOrderedMap(len(groupedFields.fields))

	for _, collected := range groupedFields.orderedFields() {
		fieldPath := appendPath(path, ast.PathName(collected.ResponseName))
		if collected.Fields[0].Name == "__typename" {
			result.Set(collected.ResponseName, objectType.Name)
			continue
		}
		value, err := s.executeField(objectType, source, collected.Fields, fieldPath)
		if err != nil {
			return nil, err
		}
		result.Set(collected.ResponseName, value)
	}
	return result, nil
}

func (s *executionState) executeField(objectType *ast.Definition, source any, fields []*ast.Field, path ast.Path) (any, error) {
	field := fields[0]
	fieldDef := objectType.Fields.ForName(field.Name)
	if fieldDef == nil {
		fieldDef = field.Definition
	}
	if fieldDef == nil {
		s.errors = append(s.errors, locatedError(fmt.Errorf("cannot query field %q on type %q", field.Name, objectType.Name), fields, path))
		return nil, nil
	}

	args, err := s.argumentValues(fieldDef.Arguments, field.Arguments)
	if err != nil {
		return s.handleFieldError(err, fieldDef.Type, fields, path)
	}
	resolved, err := s.runtime.ResolveSync(s.ctx, objectType.Name, field.Name, source, args)
	if err != nil {
		return s.handleFieldError(err, fieldDef.Type, fields, path)
	}
	completed, err := s.completeValue(fieldDef.Type, fields, resolved, path)
	if err != nil {
		return s.handleFieldError(err, fieldDef.Type, fields, path)
	}
	return completed, nil
}

// handleFieldError records err and nulls the field, or hands it to the parent
// when the field is Non-Null.
func (s *executionState) handleFieldError(err error, returnType *ast.Type, fields []*ast.Field, path ast.Path) (any, error) {
	located := locatedError(err, fields, path)
	if returnType.NonNull {
		return nil, located
	}
	s.errors = append(s.errors, located)
	return nil, nil
}

func (s *executionState) completeValue(returnType *ast.Type, fields []*ast.Field, result any, path ast.Path) (any, error) {
	if returnType.NonNull {
		completed, err := s.completeValue(nullableType(returnType), fields, result, path)
		if err != nil {
			return nil, err
		}
		if completed == nil {
			return nil, locatedError(fmt.Errorf("cannot return null for non-nullable field %s", path), fields, path)
		}
		return completed, nil
	}

	if isNullish(result) {
		return nil, nil
	}
	if returnType.Elem != nil {
		return s.completeListValue(returnType, fields, result, path)
	}

	def := s.schema.Type(returnType.NamedType)
	if def == nil {
		return nil, fmt.Errorf("unknown type %s", returnType.NamedType)
	}
	switch def.Kind {
	case ast.Scalar, ast.Enum:
		serialized, err := s.runtime.SerializeLeafValue(s.ctx, def.Name, result)
		if err != nil {
			return nil, err
		}
		if isNullish(serialized) {
			return nil, nil
		}
		return serialized, nil
	case ast.Object:
		return s.completeObjectValue(def, fields, result, path)
	case ast.Interface, ast.Union:
		return s.completeAbstractValue(def, fields, result, path)
	}
	return nil, fmt.Errorf("cannot complete value of unexpected type %s", def.Kind)
}

func (s *executionState) completeListValue(listType *ast.Type, fields []*ast.Field, result any, path ast.Path) (any, error) {
	var items []any
	if direct, ok := result.([]any); ok {
		items = direct
	} else {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("expected list value for field %s, got %T", path, result)
		}
		items = make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
	}

	completed := make([]any, len(items))
	for i, item := range items {
		itemPath := appendPath(path, ast.PathIndex(i))
		v, err := s.completeValue(listType.Elem, fields, item, itemPath)
		if err != nil {
			if listType.Elem.NonNull {
				return nil, locatedError(err, fields, itemPath)
			}
			s.errors = append(s.errors, locatedError(err, fields, itemPath))
			v = nil
		}
		completed[i] = v
	}
	return completed, nil
}

func (s *executionState) completeObjectValue(objectType *ast.Definition, fields []*ast.Field, result any, path ast.Path) (any, error) {
	obj, err := s.executeSelectionSet(objectType, mergeSelectionSets(fields), result, path)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (s *executionState) completeAbstractValue(abstractType *ast.Definition, fields []*ast.Field, result any, path ast.Path) (any, error) {
	typeName, err := s.runtime.ResolveType(s.ctx, abstractType.Name, result)
	if err != nil {
		return nil, err
	}
	objectType := s.schema.Type(typeName)
	if objectType == nil || objectType.Kind != ast.Object || !s.schema.IsPossibleType(abstractType, objectType) {
		return nil, fmt.Errorf("abstract type %s must resolve to one of its object types at runtime for field %s, got %q", abstractType.Name, path, typeName)
	}
	return s.completeObjectValue(objectType, fields, result, path)
}

// argumentValues coerces field arguments. Arguments without a value or default
// are left out of the map.
func (s *executionState) argumentValues(defs ast.ArgumentDefinitionList, args ast.ArgumentList) (map[string]any, error) {
	values := make(map[string]any, len(defs))
	for _, def := range defs {
		arg := args.ForName(def.Name)
		if arg != nil && arg.Value.Kind == ast.Variable {
			if v, ok := s.variables[arg.Value.Raw]; ok {
				values[def.Name] = v
				continue
			}
			arg = nil
		}
		if arg == nil {
			if def.DefaultValue == nil {
				continue
			}
			v, err := def.DefaultValue.Value(nil)
			if err != nil {
				return nil, fmt.Errorf("default value of argument %q: %w", def.Name, err)
			}
			values[def.Name] = v
			continue
		}
		v, err := arg.Value.Value(s.variables)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", def.Name, err)
		}
		values[def.Name] = v
	}
	return values, nil
}

func locatedError(err error, fields []*ast.Field, path ast.Path) *gqlerror.Error {
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		if gqlErr.Path != nil && gqlErr.Locations != nil {
			return gqlErr
		}
		located := *gqlErr
		if located.Path == nil {
			located.Path = path
		}
		if located.Locations == nil {
			located.Locations = fieldLocations(fields)
		}
		return &located
	}
	return &gqlerror.Error{Err: err, Message: err.Error(), Path: path, Locations: fieldLocations(fields)}
}

func fieldLocations(fields []*ast.Field) []gqlerror.Location {
	if len(fields) == 0 || fields[0].Position == nil {
		return nil
	}
	return []gqlerror.Location{{Line: fields[0].Position.Line, Column: fields[0].Position.Column}}
}

func asGQLError(err error) *gqlerror.Error {
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		return gqlErr
	}
	return &gqlerror.Error{Err: err, Message: err.Error()}
}

func nullableType(t *ast.Type) *ast.Type {
	c := *t
	c.NonNull = false
	return &c
}

func appendPath(path ast.Path, elem ast.PathElement) ast.Path {
	newPath := make(ast.Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

// mergeSelectionSets merges selection sets from multiple fields
func mergeSelectionSets(fields []*ast.Field) ast.SelectionSet {
	var merged ast.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
