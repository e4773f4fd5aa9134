// Package errors defines the structured error kinds the gateway reports:
// transport failures, backend call failures, auth and rate-limit errors,
// routing misses, approval requirements, and malformed input.
package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorCategory classifies the type of error
type ErrorCategory string

const (
	// ClientError indicates the error was caused by the caller (4xx)
	ClientError ErrorCategory = "CLIENT_ERROR"
	// ServerError indicates the error was caused by the gateway (5xx)
	ServerError ErrorCategory = "SERVER_ERROR"
	// ExternalError indicates the error was caused by an external dependency
	ExternalError ErrorCategory = "EXTERNAL_ERROR"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// Client errors
	CodeMalformedInput    ErrorCode = "MALFORMED_INPUT"
	CodeMissingParameter  ErrorCode = "MISSING_PARAMETER"
	CodeRoutingMiss       ErrorCode = "TOOL_NOT_FOUND"
	CodeApprovalRequired  ErrorCode = "APPROVAL_REQUIRED"
	CodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Server errors
	CodeInternalError ErrorCode = "INTERNAL_ERROR"
	CodeTimeout       ErrorCode = "TIMEOUT"

	// External errors
	CodeTransportUnavailable ErrorCode = "TRANSPORT_UNAVAILABLE"
	CodeBackendCallFailed    ErrorCode = "BACKEND_CALL_FAILED"
	CodeAuthFailed           ErrorCode = "AUTH_FAILED"
)

// StructuredError represents a detailed error with category, code, and recovery suggestion
type StructuredError struct {
	Code       ErrorCode     `json:"code"`
	Category   ErrorCategory `json:"category"`
	Message    string        `json:"message"`
	Details    interface{}   `json:"details,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
}

// Error implements the error interface
func (e *StructuredError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Message)
}

// ToJSON converts the error to JSON string
func (e *StructuredError) ToJSON() string {
	bytes, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf(`{"code":"%s","category":"%s","message":"%s"}`, e.Code, e.Category, e.Message)
	}
	return string(bytes)
}

// New creates a new structured error
func New(code ErrorCode, category ErrorCategory, message string) *StructuredError {
	return &StructuredError{
		Code:     code,
		Category: category,
		Message:  message,
	}
}

// WithDetails adds details to the error
func (e *StructuredError) WithDetails(details interface{}) *StructuredError {
	e.Details = details
	return e
}

// WithSuggestion adds a recovery suggestion to the error
func (e *StructuredError) WithSuggestion(suggestion string) *StructuredError {
	e.Suggestion = suggestion
	return e
}

// Common error constructors

// NewMalformedInput creates a malformed input error for schema violations
// rejected at the tool boundary
func NewMalformedInput(message string) *StructuredError {
	return New(CodeMalformedInput, ClientError, message).
		WithSuggestion("Check the input parameters and try again")
}

// NewMissingParameter creates a missing parameter error
func NewMissingParameter(param string) *StructuredError {
	return New(CodeMissingParameter, ClientError, fmt.Sprintf("Required parameter '%s' is missing", param)).
		WithSuggestion(fmt.Sprintf("Provide the '%s' parameter", param))
}

// NewRoutingMiss creates an error for a tool name absent from the routing table
func NewRoutingMiss(toolName string) *StructuredError {
	return New(CodeRoutingMiss, ClientError, fmt.Sprintf("Tool '%s' not found in routing table", toolName)).
		WithSuggestion("List available tools with the matching role meta-tool")
}

// NewApprovalRequired creates an approval-required error for destructive
// capabilities invoked without an approval token
func NewApprovalRequired(toolName string) *StructuredError {
	return New(CodeApprovalRequired, ClientError, fmt.Sprintf("Tool '%s' requires approval before execution", toolName)).
		WithSuggestion("An approval request has been published; an operator must acknowledge it")
}

// NewRateLimitExceeded creates a rate limit exceeded error
func NewRateLimitExceeded() *StructuredError {
	return New(CodeRateLimitExceeded, ClientError, "Rate limit exceeded").
		WithSuggestion("Wait a moment and try again")
}

// NewInternalError creates an internal gateway error
func NewInternalError(message string) *StructuredError {
	return New(CodeInternalError, ServerError, message).
		WithSuggestion("Try again later or check the gateway logs")
}

// NewTimeout creates a timeout error
func NewTimeout(operation string) *StructuredError {
	return New(CodeTimeout, ServerError, fmt.Sprintf("Operation '%s' timed out", operation)).
		WithSuggestion("Try again or adjust timeout settings")
}

// NewTransportUnavailable creates an error for an unreachable bus or
// directory; callers recover locally (static fallback, zero-count publish)
func NewTransportUnavailable(transport string, err error) *StructuredError {
	return New(CodeTransportUnavailable, ExternalError, fmt.Sprintf("%s unavailable: %v", transport, err)).
		WithSuggestion("The gateway continues in degraded mode; check transport connectivity")
}

// NewBackendCallFailed creates an error for a downstream backend failure
func NewBackendCallFailed(endpoint string, statusCode int, message string) *StructuredError {
	return New(CodeBackendCallFailed, ExternalError, fmt.Sprintf("Backend %s failed (HTTP %d): %s", endpoint, statusCode, message)).
		WithDetails(map[string]interface{}{
			"endpoint":    endpoint,
			"status_code": statusCode,
		}).
		WithSuggestion("Check the backend server status")
}

// NewAuthFailed creates an authentication failed error; not retried
func NewAuthFailed(message string) *StructuredError {
	return New(CodeAuthFailed, ExternalError, message).
		WithSuggestion("Check the configured directory credentials")
}

// FromForwardError classifies a fan-out error entry by its text. The
// forwarder reports unreachable endpoints with a fixed suffix; anything
// else came back from the backend itself.
func FromForwardError(backend, message string) *StructuredError {
	if strings.HasSuffix(message, "unreachable") {
		return New(CodeTransportUnavailable, ExternalError, fmt.Sprintf("%s: %s", backend, message)).
			WithSuggestion("The gateway continues in degraded mode; check transport connectivity")
	}
	return New(CodeBackendCallFailed, ExternalError, fmt.Sprintf("%s: %s", backend, message)).
		WithSuggestion("Check the backend server status")
}

// FromHTTPStatus creates an appropriate error from an HTTP status code
func FromHTTPStatus(endpoint string, statusCode int, responseBody string) *StructuredError {
	switch {
	case statusCode == 400:
		return NewMalformedInput(responseBody)
	case statusCode == 401 || statusCode == 403:
		return NewAuthFailed(fmt.Sprintf("HTTP %d from %s", statusCode, endpoint))
	case statusCode == 404:
		return New(CodeRoutingMiss, ClientError, "Resource not found")
	case statusCode == 429:
		return NewRateLimitExceeded()
	case statusCode >= 500 && statusCode < 600:
		return NewBackendCallFailed(endpoint, statusCode, responseBody)
	default:
		return New(CodeInternalError, ServerError, fmt.Sprintf("Unexpected HTTP status %d: %s", statusCode, responseBody))
	}
}
