// Package executor implements a GraphQL executor over a gqlparser schema with
// explicit runtime hooks for field resolution, abstract-type resolution, and
// leaf serialization.
//
// # Overview
//
// An Executor is built once per process from a Runtime and a schema and is
// safe for concurrent use. Each call to Execute:
//  1. Parses and validates the query text against the schema. Valid documents
//     are kept in a bounded document cache keyed by query text.
//  2. Selects the operation by name, or the only operation when no name is
//     given.
//  3. Coerces the raw variables against the operation's variable definitions.
//  4. Executes the root selection set depth-first, in document order, and
//     completes each value against its declared type.
//
// Syntax, validation and coercion failures never reach the Runtime; they are
// returned as errors inside the ExecutionResult with no data.
//
// # Value Completion
//
//   - Non-Null: complete the inner type. A null result, or an error, becomes an
//     error that propagates to the nearest nullable ancestor.
//   - Null: nil results (including typed nils) produce GraphQL null.
//   - List: complete each element with an index-aware path. An element error for
//     a nullable element type nulls only that element.
//   - Leaf (Scalar/Enum): defer to Runtime.SerializeLeafValue.
//   - Abstract (Interface/Union): defer to Runtime.ResolveType, check the result
//     is a possible type, then complete as an object.
//   - Object: collect subfields and execute them.
//
// Response objects are *OrderedMap values so that serialized responses keep the
// order in which fields were selected.
//
// # Errors
//
// Errors are accumulated as located GraphQL errors (message, locations, path)
// and execution continues, allowing partial results. A panic raised by the
// Runtime is not converted into a field error: it aborts the operation and is
// reported by ExecuteAsync as an engine failure.
//
// # Asynchronous execution
//
// ExecuteAsync runs Execute on its own goroutine and delivers exactly one
// Outcome on the returned channel. The context is passed to every Runtime
// call; the executor itself does not abandon work when it is cancelled.
package executor
