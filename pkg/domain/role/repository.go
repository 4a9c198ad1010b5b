package role

import (
	"context"

	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/pagination"
)

// Filter narrows role listings.
type Filter struct {
	Search     string
	Pagination pagination.Pagination
	Sort       *pagination.SortOption
}

// Repository is the persistence contract for roles and assignments.
type Repository interface {
	Create(ctx context.Context, r *Role) error
	Update(ctx context.Context, r *Role) error
	Delete(ctx context.Context, id shared.ID) error
	GetByID(ctx context.Context, id shared.ID) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	GetByIDs(ctx context.Context, ids []shared.ID) ([]*Role, error)
	List(ctx context.Context, filter Filter) ([]*Role, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	ExistsByName(ctx context.Context, name string) (bool, error)

	// Assignment operations. Assign is idempotent: assigning an
	// existing pair is a no-op. Remove reports the number of rows
	// deleted so callers can distinguish a no-op from a removal.
	Assign(ctx context.Context, a Assignment) error
	Remove(ctx context.Context, userID, roleID shared.ID) (int64, error)
	ListRoleIDsForUser(ctx context.Context, userID shared.ID) ([]shared.ID, error)
	ListRolesForUser(ctx context.Context, userID shared.ID) ([]*Role, error)
	ListUserIDsForRole(ctx context.Context, roleID shared.ID) ([]shared.ID, error)

	// ReplaceForUser applies an add/remove diff for one user in a
	// single transaction. Either every change lands or none do.
	ReplaceForUser(ctx context.Context, userID shared.ID, add []Assignment, remove []shared.ID) error
}
