// Package dto defines API request/response types and error handling.
//
// Record IDs are serialized as decimal strings: they are 63-bit values that
// JavaScript numbers cannot hold exactly.
//
// Error handling follows a structured pattern:
//   - ErrorCode provides machine-readable error classification
//   - APIError wraps errors with HTTP status codes and details
//   - Constructor functions (NotFound, BadRequest, etc.) create common errors
package dto

import (
	"fmt"
	"maps"
	"net/http"
)

// ErrorCode defines specific error types for the API.
type ErrorCode string

const (
	// ErrorCodeValidationFailed is returned when input data fails validation.
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	// ErrorCodeMissingField is returned when a required field is missing.
	ErrorCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrorCodeNotFound is returned when a resource is not found.
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeCapacityExceeded is returned when a store is out of space.
	ErrorCodeCapacityExceeded ErrorCode = "CAPACITY_EXCEEDED"
	// ErrorCodeUpgradeBlocked is returned while the blob store schema upgrade
	// waits for another connection to close.
	ErrorCodeUpgradeBlocked ErrorCode = "UPGRADE_BLOCKED"
	// ErrorCodePayloadTooLarge is returned when the request body is too big.
	ErrorCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	// ErrorCodeRateLimitExceeded is returned when a client sends too many requests.
	ErrorCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrorCodeInternal is returned when an unexpected server error occurs.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// ErrorDetails defines the structured error information in a response.
type ErrorDetails struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error   ErrorDetails   `json:"error"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorWithStatus is an error that includes an HTTP status code and error code.
type ErrorWithStatus interface {
	Error() string
	StatusCode() int
	Code() ErrorCode
	Message() string
	Details() map[string]any
}

// APIError is a concrete error type with status code and optional details.
type APIError struct {
	statusCode int
	code       ErrorCode
	message    string
	details    map[string]any
	wrappedErr error
}

// NewAPIError creates a new APIError with the given status code and message.
func NewAPIError(statusCode int, code ErrorCode, message string) *APIError {
	return &APIError{
		statusCode: statusCode,
		code:       code,
		message:    message,
		details:    make(map[string]any),
	}
}

// WithDetails adds details to the error.
func (e *APIError) WithDetails(details map[string]any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	maps.Copy(e.details, details)
	return e
}

// WithDetail adds a single detail to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Wrap wraps an underlying error.
func (e *APIError) Wrap(err error) *APIError {
	e.wrappedErr = err
	return e
}

// Error implements the error interface. It includes the wrapped error and is
// meant for logs; clients see Message.
func (e *APIError) Error() string {
	if e.wrappedErr != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrappedErr)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *APIError) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *APIError) Code() ErrorCode {
	return e.code
}

// Message returns the client-facing message.
func (e *APIError) Message() string {
	return e.message
}

// Details returns additional error details.
func (e *APIError) Details() map[string]any {
	return e.details
}

// Unwrap returns the wrapped error if any.
func (e *APIError) Unwrap() error {
	return e.wrappedErr
}

// Predefined error constructors for common cases

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *APIError {
	return NewAPIError(http.StatusNotFound, ErrorCodeNotFound, resource+" not found")
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeValidationFailed, message)
}

// MissingField creates a 400 Bad Request error for a missing field.
func MissingField(fieldName string) *APIError {
	return NewAPIError(http.StatusBadRequest, ErrorCodeMissingField, "Missing required field: "+fieldName).WithDetail("field", fieldName)
}

// CapacityExceeded creates a 507 error telling the user how to free space.
func CapacityExceeded() *APIError {
	return NewAPIError(http.StatusInsufficientStorage, ErrorCodeCapacityExceeded,
		"Storage quota exceeded. Please try with a smaller video file or delete some old trailers.")
}

// UpgradeBlocked creates a retryable 503 error.
func UpgradeBlocked() *APIError {
	return NewAPIError(http.StatusServiceUnavailable, ErrorCodeUpgradeBlocked,
		"Video storage is being upgraded and another session still holds it open. Close it and try again.")
}

// PayloadTooLarge creates a 413 error.
func PayloadTooLarge(limit int64) *APIError {
	return NewAPIError(http.StatusRequestEntityTooLarge, ErrorCodePayloadTooLarge, "Request body too large").WithDetail("max_bytes", limit)
}

// RateLimitExceeded creates a 429 error.
func RateLimitExceeded(retryAfter int) *APIError {
	return NewAPIError(http.StatusTooManyRequests, ErrorCodeRateLimitExceeded, "Too many requests").WithDetail("retry_after", retryAfter)
}

// Internal returns a 500 Internal Server Error.
func Internal(message string) *APIError {
	return NewAPIError(http.StatusInternalServerError, ErrorCodeInternal, message)
}

// InternalWithError creates a 500 error wrapping an underlying error.
func InternalWithError(message string, err error) *APIError {
	return Internal(message).Wrap(err)
}
