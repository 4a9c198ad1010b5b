package user

import (
	"fmt"

	"github.com/connecthub/api/pkg/domain/shared"
)

// Domain errors for users. They wrap the shared sentinels so callers
// can classify them with errors.Is.
var (
	ErrUserNotFound  = fmt.Errorf("user %w", shared.ErrNotFound)
	ErrUsernameTaken = fmt.Errorf("username %w", shared.ErrAlreadyExists)
	ErrEmailTaken    = fmt.Errorf("email %w", shared.ErrAlreadyExists)
)

// NotFoundError returns a not-found error naming the missing user.
func NotFoundError(id shared.ID) error {
	return fmt.Errorf("user %q %w", id.String(), shared.ErrNotFound)
}
