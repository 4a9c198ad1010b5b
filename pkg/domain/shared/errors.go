// Package shared provides domain types used by every entity package.
package shared

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain error taxonomy. Entity packages wrap
// these so callers can classify failures with errors.Is without
// depending on concrete entity errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrValidation    = errors.New("validation error")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrUnavailable   = errors.New("service unavailable")
)

// DomainError carries a machine-readable code alongside a message.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError.
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err is a unique-key conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsForbidden reports whether err is an authorization failure.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsUnavailable reports whether err is an infrastructure failure that
// should surface as a top-level 500 rather than a per-record outcome.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
