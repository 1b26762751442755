package events

import (
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"
)

// GraphQLStart is emitted before handing a request to the executor.
type GraphQLStart struct {
	Query         string
	OperationName string
	// Source is where the query text was taken from ("query-string",
	// "graphql-body" or "json-body").
	Source string
}

// GraphQLFinish is emitted after the executor produced a result.
type GraphQLFinish struct {
	Query         string
	OperationName string
	OperationType string
	Errors        gqlerror.List
	Duration      time.Duration
}

// ExecutionFailed is emitted when the executor failed without producing a
// result.
type ExecutionFailed struct {
	Query         string
	OperationName string
	Err           error
	Duration      time.Duration
}
