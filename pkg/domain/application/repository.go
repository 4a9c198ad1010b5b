package application

import (
	"context"

	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/pagination"
)

// Filter narrows application listings.
type Filter struct {
	Search     string
	Enabled    *bool
	Pagination pagination.Pagination
	Sort       *pagination.SortOption
}

// Repository is the persistence contract for applications.
type Repository interface {
	Create(ctx context.Context, a *Application) error
	Update(ctx context.Context, a *Application) error
	Delete(ctx context.Context, id shared.ID) error
	GetByID(ctx context.Context, id shared.ID) (*Application, error)
	GetByName(ctx context.Context, name string) (*Application, error)
	List(ctx context.Context, filter Filter) ([]*Application, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
}
