package connection

import (
	"fmt"

	"github.com/connecthub/api/pkg/domain/shared"
)

var (
	ErrConnectionNotFound = fmt.Errorf("connection %w", shared.ErrNotFound)
	ErrNameTaken          = fmt.Errorf("connection name %w", shared.ErrAlreadyExists)
)

// NotFoundError returns a not-found error naming the missing connection.
func NotFoundError(id shared.ID) error {
	return fmt.Errorf("connection %q %w", id.String(), shared.ErrNotFound)
}
