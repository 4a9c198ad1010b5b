// Package apierror provides standardized API error responses shared by
// every HTTP handler.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

// Standard error codes.
const (
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeValidationFailed   Code = "VALIDATION_FAILED"
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"
)

// Error is a standardized API error.
type Error struct {
	// HTTP status code
	Status int `json:"-"`

	// Machine-readable error code
	Code Code `json:"code"`

	// Human-readable error message
	Message string `json:"message"`

	// Additional error details (optional)
	Details any `json:"details,omitempty"`

	// Internal error, logged but never exposed to clients
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Response is the JSON body written for an error.
type Response struct {
	Error     string `json:"error"`
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ToResponse converts the error to its wire form.
func (e *Error) ToResponse() Response {
	return Response{
		Error:   string(e.Code),
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// WriteJSON writes the error as JSON to the response writer.
func (e *Error) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(e.ToResponse())
}

// WriteJSONWithRequestID writes the error as JSON including the request ID.
func (e *Error) WriteJSONWithRequestID(w http.ResponseWriter, requestID string) {
	resp := e.ToResponse()
	resp.RequestID = requestID
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(e.Status)
	_ = json.NewEncoder(w).Encode(resp)
}

// New creates a new API error.
func New(status int, code Code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// WithDetails adds details to the error.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// WithError attaches an internal error for logging.
func (e *Error) WithError(err error) *Error {
	e.Err = err
	return e
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeBadRequest, message)
}

// Conflict creates a 400 error for a unique-key conflict. Batch
// endpoints report per-record conflicts in their outcome payload
// instead; this is for single-entity operations.
func Conflict(message string) *Error {
	return New(http.StatusBadRequest, CodeConflict, message)
}

// ValidationFailed creates a 400 error carrying field-level details.
func ValidationFailed(message string, details any) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeValidationFailed,
		Message: message,
		Details: details,
	}
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden creates a 403 Forbidden error.
func Forbidden(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return New(http.StatusForbidden, CodeForbidden, message)
}

// NotFound creates a 404 Not Found error.
func NotFound(resource string) *Error {
	message := "Resource not found"
	if resource != "" {
		message = fmt.Sprintf("%s not found", resource)
	}
	return New(http.StatusNotFound, CodeNotFound, message)
}

// InternalError creates a 500 error hiding the internal cause.
func InternalError(err error) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternalError,
		Message: "An internal error occurred",
		Err:     err,
	}
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return New(http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}

// TooManyRequests creates a 429 error.
func TooManyRequests(message string) *Error {
	if message == "" {
		message = "Rate limit exceeded"
	}
	return New(http.StatusTooManyRequests, CodeRateLimitExceeded, message)
}

// FromError converts any error to an API error, wrapping unknown errors
// as internal errors.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return InternalError(err)
}

// ValidationError is a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects field validation failures.
type ValidationErrors []ValidationError

// Add appends a validation error.
func (v *ValidationErrors) Add(field, message string) {
	*v = append(*v, ValidationError{Field: field, Message: message})
}

// HasErrors reports whether any validation errors were collected.
func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

// ToAPIError converts the collection into a 400 response.
func (v ValidationErrors) ToAPIError() *Error {
	return ValidationFailed("Validation failed", v)
}

// SafeBadRequest creates a 400 error with a generic message. The actual
// error is kept internally for logging only.
func SafeBadRequest(err error) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    CodeBadRequest,
		Message: "Invalid request",
		Err:     err,
	}
}

// SafeUnauthorized creates a 401 error with a generic message.
func SafeUnauthorized(err error) *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		Code:    CodeUnauthorized,
		Message: "Authentication failed",
		Err:     err,
	}
}
