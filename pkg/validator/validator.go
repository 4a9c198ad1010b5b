// Package validator wraps go-playground/validator with domain-specific
// validations and snake_case field errors.
package validator

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/connecthub/api/pkg/domain/connection"
	"github.com/connecthub/api/pkg/domain/migration"
)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate *validator.Validate
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return sb.String()
}

// New creates a Validator with custom validators registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("cron", validateCron)
	_ = v.RegisterValidation("db_driver", validateDriver)
	_ = v.RegisterValidation("migration_type", validateMigrationType)

	return &Validator{validate: v}
}

// Validate validates a struct and returns ValidationErrors on failure.
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(validationErrors))
	for _, e := range validationErrors {
		result = append(result, ValidationError{
			Field:   toSnakeCase(e.Field()),
			Message: formatErrorMessage(e),
		})
	}

	return result
}

// validateCron validates a connection test schedule cron expression.
func validateCron(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return connection.ValidateSchedule(value) == nil
}

// validateDriver validates a database driver name.
func validateDriver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return connection.Driver(value).IsValid()
}

// validateMigrationType validates a bulk import type.
func validateMigrationType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	_, err := migration.ParseType(value)
	return err == nil
}

// formatErrorMessage converts validation errors to human-readable messages.
func formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "cron":
		return "must be a valid cron expression (e.g., '0 6 * * *')"
	case "db_driver":
		return "must be one of: postgres, mysql, sqlserver, oracle"
	case "migration_type":
		return "must be one of: users, roles, applications"
	default:
		return fmt.Sprintf("failed on '%s' validation", e.Tag())
	}
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}
