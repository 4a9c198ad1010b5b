package role

import (
	"fmt"

	"github.com/connecthub/api/pkg/domain/shared"
)

var (
	ErrRoleNotFound       = fmt.Errorf("role %w", shared.ErrNotFound)
	ErrRoleNameTaken      = fmt.Errorf("role name %w", shared.ErrAlreadyExists)
	ErrAssignmentNotFound = fmt.Errorf("role assignment %w", shared.ErrNotFound)
	ErrSystemRole         = fmt.Errorf("%w: system roles cannot be deleted", shared.ErrValidation)
)

// NotFoundError returns a not-found error naming the missing role.
func NotFoundError(id shared.ID) error {
	return fmt.Errorf("role %q %w", id.String(), shared.ErrNotFound)
}
