package graph

import (
	"errors"
	"fmt"

	"github.com/hollomancer/sbir-analytics-sub002/internal/types"
)

// GraphError represents an error from a graph database operation with
// structured context for debugging and retry decisions.
type GraphError struct {
	// Code is the namespaced error code from the types package.
	Code types.ErrorCode

	// Message is a human-readable description of the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Query is the Cypher statement that triggered the error, if applicable.
	Query string

	// Context holds additional key-value pairs for debugging.
	Context map[string]any

	// Retryable indicates whether the operation may succeed on retry.
	Retryable bool
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if a cause exists.
func (e *GraphError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *GraphError) Unwrap() error {
	return e.Cause
}

// WithQuery attaches the Cypher statement that triggered the error.
// Returns the error for chaining.
func (e *GraphError) WithQuery(query string) *GraphError {
	e.Query = query
	return e
}

// WithContext attaches a key-value pair to the error context.
// Returns the error for chaining.
func (e *GraphError) WithContext(key string, value any) *GraphError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewGraphError creates a non-retryable GraphError with the given code
// and message.
func NewGraphError(code types.ErrorCode, message string) *GraphError {
	return &GraphError{
		Code:    code,
		Message: message,
	}
}

// WrapGraphError creates a GraphError that wraps an underlying error.
func WrapGraphError(code types.ErrorCode, message string, cause error) *GraphError {
	return &GraphError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConnectionError creates a retryable GraphError for connection
// failures. Connection failures are transient by default: the database
// may be starting up or briefly unreachable.
func NewConnectionError(cause error) *GraphError {
	return &GraphError{
		Code:      types.GRAPH_CONNECTION_FAILED,
		Message:   "failed to connect to graph database",
		Cause:     cause,
		Retryable: true,
	}
}

// NewQueryError creates a GraphError for a failed Cypher execution.
func NewQueryError(cause error) *GraphError {
	return &GraphError{
		Code:    types.GRAPH_QUERY_FAILED,
		Message: "query execution failed",
		Cause:   cause,
	}
}

// NewSchemaError creates a GraphError for a failed constraint or index
// operation.
func NewSchemaError(cause error) *GraphError {
	return &GraphError{
		Code:    types.GRAPH_SCHEMA_FAILED,
		Message: "schema operation failed",
		Cause:   cause,
	}
}

// NewNotConnectedError creates a GraphError indicating an operation was
// attempted against a closed client.
func NewNotConnectedError() *GraphError {
	return &GraphError{
		Code:    types.GRAPH_NOT_CONNECTED,
		Message: "client is not connected",
	}
}

// IsRetryable reports whether err (or any error in its chain) is marked
// retryable, checking GraphError first and falling back to the types
// package helper.
func IsRetryable(err error) bool {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	return types.IsRetryable(err)
}

// CodeOf extracts the ErrorCode from err if it is a GraphError or
// PipelineError, returning an empty code otherwise.
func CodeOf(err error) types.ErrorCode {
	var ge *GraphError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return types.CodeOf(err)
}
