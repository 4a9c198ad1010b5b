package application

import (
	"fmt"

	"github.com/connecthub/api/pkg/domain/shared"
)

var (
	ErrApplicationNotFound = fmt.Errorf("application %w", shared.ErrNotFound)
	ErrNameTaken           = fmt.Errorf("application name %w", shared.ErrAlreadyExists)
)

// NotFoundError returns a not-found error naming the missing application.
func NotFoundError(id shared.ID) error {
	return fmt.Errorf("application %q %w", id.String(), shared.ErrNotFound)
}
