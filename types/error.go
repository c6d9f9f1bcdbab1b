package types

import "fmt"

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Request error codes
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrInvalidRef     ErrorCode = "INVALID_CAPABILITY_REF"
)

// Capability error codes
const (
	ErrProviderNotFound      ErrorCode = "PROVIDER_NOT_FOUND"
	ErrCapabilityNotFound    ErrorCode = "CAPABILITY_NOT_FOUND"
	ErrCapabilityUnreachable ErrorCode = "CAPABILITY_UNREACHABLE"
	ErrCapabilityTimeout     ErrorCode = "CAPABILITY_TIMEOUT"
	ErrCapabilityRemote      ErrorCode = "CAPABILITY_REMOTE_ERROR"
	ErrCapabilityBadResponse ErrorCode = "CAPABILITY_BAD_RESPONSE"
)

// Backend error codes
const (
	ErrBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrBackendUnreachable ErrorCode = "BACKEND_UNREACHABLE"
	ErrBackendTimeout     ErrorCode = "BACKEND_TIMEOUT"
	ErrBackendRemote      ErrorCode = "BACKEND_REMOTE_ERROR"
	ErrBackendBadResponse ErrorCode = "BACKEND_BAD_RESPONSE"
)

// Service error codes
const (
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
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

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
