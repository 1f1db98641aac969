package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Request error codes
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrTimeout        ErrorCode = "TIMEOUT"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
)

// Pipeline error codes
const (
	ErrIndexUnavailable      ErrorCode = "INDEX_UNAVAILABLE"
	ErrGenerationUnavailable ErrorCode = "GENERATION_UNAVAILABLE"
	ErrSynthesisUnavailable  ErrorCode = "SYNTHESIS_UNAVAILABLE"
	ErrCacheFault            ErrorCode = "CACHE_FAULT"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
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

// AsError extracts *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether any *Error in the chain carries code.
func IsErrorCode(err error, code ErrorCode) bool {
	if e, ok := AsError(err); ok {
		return e.Code == code
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// --- 常用错误构造 ---

// NewInvalidRequestError creates an INVALID_REQUEST error.
func NewInvalidRequestError(message string) *Error {
	return NewError(ErrInvalidRequest, message).WithHTTPStatus(http.StatusBadRequest)
}

// NewIndexUnavailableError creates an INDEX_UNAVAILABLE error.
func NewIndexUnavailableError(message string) *Error {
	return NewError(ErrIndexUnavailable, message).
		WithHTTPStatus(http.StatusServiceUnavailable).
		WithRetryable(true)
}

// NewGenerationUnavailableError creates a GENERATION_UNAVAILABLE error.
func NewGenerationUnavailableError(message string) *Error {
	return NewError(ErrGenerationUnavailable, message).
		WithHTTPStatus(http.StatusServiceUnavailable).
		WithRetryable(true)
}

// NewSynthesisUnavailableError creates a SYNTHESIS_UNAVAILABLE error.
func NewSynthesisUnavailableError(message string) *Error {
	return NewError(ErrSynthesisUnavailable, message).
		WithHTTPStatus(http.StatusServiceUnavailable).
		WithRetryable(true)
}

// NewCacheFaultError creates a CACHE_FAULT error. It never leaves the cache layer.
func NewCacheFaultError(message string) *Error {
	return NewError(ErrCacheFault, message)
}

// NewTimeoutError creates a TIMEOUT error.
func NewTimeoutError(message string) *Error {
	return NewError(ErrTimeout, message).
		WithHTTPStatus(http.StatusGatewayTimeout).
		WithRetryable(true)
}

// NewInternalError creates an INTERNAL_ERROR error.
func NewInternalError(message string) *Error {
	return NewError(ErrInternalError, message).WithHTTPStatus(http.StatusInternalServerError)
}
