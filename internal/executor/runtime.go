package executor

import (
	"context"
)

// Runtime defines the host integration surface for field resolution, abstract
// type resolution and leaf-value serialization used by the Executor.
//
// General contract
//   - Implementations must be safe for concurrent use. The Executor calls them
//     from many operations at once but never concurrently within one operation.
//   - Errors returned from any method are converted into located GraphQL errors.
//     If the field's return type is Non-Null, the Executor propagates the null
//     to the nearest nullable ancestor.
//   - Implementations must not mutate source or args values.
//
// Object/field identifiers
//   - objectType is the GraphQL type name (e.g. "Person").
//   - field is the GraphQL field name on that type (e.g. "name").
//   - For root fields, objectType is the root type name and source is nil.
//   - args holds the coerced argument values. Arguments that were neither given
//     nor defaulted are absent; an explicit null is present with a nil value.
type Runtime interface {
	// ResolveSync resolves a field value. Return (nil, nil) to produce a
	// GraphQL null for nullable fields.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// ResolveType determines the concrete object type name for a value of an
	// abstract GraphQL type (interface or union).
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// SerializeLeafValue serializes a scalar or enum value to a JSON-safe Go
	// value. For enums, return the symbolic name as string. Runtimes without
	// custom scalars can delegate to SerializeBuiltinScalar.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}
