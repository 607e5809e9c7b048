package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

// Provider-side error codes. These are transient: the invocation layer
// retries them with backoff before giving up.
const (
	ErrRateLimited         ErrorCode = "RATE_LIMITED"
	ErrProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrUpstreamTimeout     ErrorCode = "UPSTREAM_TIMEOUT"
	ErrModelOverloaded     ErrorCode = "MODEL_OVERLOADED"
)

// Agent output error codes. These are terminal for the invocation: a
// malformed or schema-invalid response never improves on retry.
const (
	ErrOutputParse      ErrorCode = "OUTPUT_PARSE"
	ErrSchemaValidation ErrorCode = "SCHEMA_VALIDATION"
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"
)

// Orchestration error codes.
const (
	ErrBudgetExceeded ErrorCode = "BUDGET_EXCEEDED"
	ErrAgentNotFound  ErrorCode = "AGENT_NOT_FOUND"
	ErrInternal       ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	AgentID   string    `json:"agent_id,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithAgentID tags the error with the agent that produced it.
func (e *Error) WithAgentID(agentID string) *Error {
	e.AgentID = agentID
	return e
}

// NewRateLimitError creates a retryable rate-limit error.
func NewRateLimitError(message string) *Error {
	return NewError(ErrRateLimited, message).WithRetryable(true)
}

// NewProviderUnavailableError creates a retryable provider-unavailable error.
func NewProviderUnavailableError(message string) *Error {
	return NewError(ErrProviderUnavailable, message).WithRetryable(true)
}

// NewParseError creates a terminal output-parse error.
func NewParseError(message string) *Error {
	return NewError(ErrOutputParse, message)
}

// NewSchemaError creates a terminal schema-validation error.
func NewSchemaError(message string) *Error {
	return NewError(ErrSchemaValidation, message)
}

// NewBudgetError creates a terminal budget-exceeded error.
func NewBudgetError(message string) *Error {
	return NewError(ErrBudgetExceeded, message)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// AsError converts any error into a *Error, unwrapping to find a structured
// error first and wrapping foreign errors under ErrInternal, so the
// invocation boundary always yields a structured failure.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(ErrInternal, err.Error()).WithCause(err)
}
