package user

import (
	"context"

	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/pagination"
)

// Filter narrows user listings.
type Filter struct {
	Search     string // matches username, email or full name
	Status     *Status
	Pagination pagination.Pagination
	Sort       *pagination.SortOption
}

// Repository is the persistence contract for users.
type Repository interface {
	Create(ctx context.Context, u *User) error
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id shared.ID) error
	GetByID(ctx context.Context, id shared.ID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByIDs(ctx context.Context, ids []shared.ID) ([]*User, error)
	List(ctx context.Context, filter Filter) ([]*User, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}
