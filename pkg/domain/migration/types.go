// Package migration defines bulk import requests and outcomes.
package migration

import (
	"encoding/json"
	"fmt"

	"github.com/connecthub/api/pkg/domain/shared"
)

// Type names the kind of records a bulk import carries.
type Type string

const (
	TypeUsers        Type = "users"
	TypeRoles        Type = "roles"
	TypeApplications Type = "applications"
)

// ParseType parses a migration type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeUsers, TypeRoles, TypeApplications:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%w: unknown migration type %q", shared.ErrValidation, s)
	}
}

// AllTypes lists the supported migration types.
func AllTypes() []Type {
	return []Type{TypeUsers, TypeRoles, TypeApplications}
}

// Request is one bulk import call. Records stay raw until the service
// decodes them per type; order is preserved and significant, since the
// first record claiming a unique key wins.
type Request struct {
	Type              Type              `json:"type"`
	Records           []json.RawMessage `json:"records"`
	OverwriteExisting bool              `json:"overwrite_existing"`
	ValidateOnly      bool              `json:"validate_only"`
}

// RecordError describes why one record failed, keyed by its position in
// the request.
type RecordError struct {
	Index      int    `json:"index"`
	Identifier string `json:"identifier"`
	Message    string `json:"message"`
}

// Outcome aggregates per-record results of a batch. SuccessfulRecords
// plus FailedRecords always equals TotalRecords.
type Outcome struct {
	TotalRecords      int           `json:"total_records"`
	SuccessfulRecords int           `json:"successful_records"`
	FailedRecords     int           `json:"failed_records"`
	Errors            []RecordError `json:"errors"`
}

// NewOutcome creates an outcome for a batch of the given size.
func NewOutcome(total int) *Outcome {
	return &Outcome{
		TotalRecords: total,
		Errors:       make([]RecordError, 0),
	}
}

// RecordSuccess counts one successful record.
func (o *Outcome) RecordSuccess() {
	o.SuccessfulRecords++
}

// RecordFailure counts one failed record and captures its error.
func (o *Outcome) RecordFailure(index int, identifier, message string) {
	o.FailedRecords++
	o.Errors = append(o.Errors, RecordError{
		Index:      index,
		Identifier: identifier,
		Message:    message,
	})
}

// Success reports whether every record succeeded.
func (o *Outcome) Success() bool {
	return o.FailedRecords == 0
}

// UserRecord is one user row in a users import.
type UserRecord struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=128"`
	// Password is optional; a random credential is generated when
	// absent and the user resets it via the welcome email.
	Password string `json:"password,omitempty" validate:"omitempty,min=8"`
}

// RoleRecord is one role row in a roles import.
type RoleRecord struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=256"`
}

// ApplicationRecord is one application row in an applications import.
type ApplicationRecord struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=256"`
	URL         string `json:"url" validate:"omitempty,url"`
	OwnerEmail  string `json:"owner_email" validate:"omitempty,email"`
}
