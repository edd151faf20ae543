package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for pipeline errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
	CONFIG_NOT_FOUND         ErrorCode = "CONFIG_NOT_FOUND"
)

// Graph database error codes
const (
	GRAPH_CONNECTION_FAILED ErrorCode = "GRAPH_CONNECTION_FAILED"
	GRAPH_QUERY_FAILED      ErrorCode = "GRAPH_QUERY_FAILED"
	GRAPH_SCHEMA_FAILED     ErrorCode = "GRAPH_SCHEMA_FAILED"
	GRAPH_NOT_CONNECTED     ErrorCode = "GRAPH_NOT_CONNECTED"
)

// Load pipeline error codes
const (
	LOAD_RECORD_MISSING_KEY ErrorCode = "LOAD_RECORD_MISSING_KEY"
	LOAD_VALUE_UNSUPPORTED  ErrorCode = "LOAD_VALUE_UNSUPPORTED"
	LOAD_BATCH_FAILED       ErrorCode = "LOAD_BATCH_FAILED"
	LOAD_MERGE_FAILED       ErrorCode = "LOAD_MERGE_FAILED"
)

// Run ledger error codes
const (
	LEDGER_OPEN_FAILED  ErrorCode = "LEDGER_OPEN_FAILED"
	LEDGER_WRITE_FAILED ErrorCode = "LEDGER_WRITE_FAILED"
	LEDGER_QUERY_FAILED ErrorCode = "LEDGER_QUERY_FAILED"
)

// PipelineError represents a structured error with error code, message, and
// optional cause. It supports error wrapping and retryability hints for
// error handling logic.
type PipelineError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
func (e *PipelineError) Is(target error) bool {
	var pe *PipelineError
	if errors.As(target, &pe) {
		return e.Code == pe.Code
	}
	return false
}

// NewError creates a new non-retryable PipelineError with the given code and message.
func NewError(code ErrorCode, message string) *PipelineError {
	return &PipelineError{
		Code:    code,
		Message: message,
	}
}

// NewRetryableError creates a new retryable PipelineError. Use this for
// transient errors that may succeed on retry (e.g., network timeouts).
func NewRetryableError(code ErrorCode, message string) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError creates a new non-retryable PipelineError that wraps an existing
// error. The wrapped error is accessible via Unwrap() for chain inspection.
func WrapError(code ErrorCode, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsRetryable reports whether err (or any error in its chain) is a
// PipelineError marked retryable.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// CodeOf extracts the ErrorCode from err if it is a PipelineError,
// returning an empty code otherwise.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
