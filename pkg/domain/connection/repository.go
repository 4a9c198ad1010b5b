package connection

import (
	"context"

	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/pagination"
)

// Filter narrows connection listings.
type Filter struct {
	Search     string
	Driver     *Driver
	Pagination pagination.Pagination
	Sort       *pagination.SortOption
}

// Repository is the persistence contract for connections.
type Repository interface {
	Create(ctx context.Context, c *Connection) error
	Update(ctx context.Context, c *Connection) error
	Delete(ctx context.Context, id shared.ID) error
	GetByID(ctx context.Context, id shared.ID) (*Connection, error)
	GetByName(ctx context.Context, name string) (*Connection, error)
	List(ctx context.Context, filter Filter) ([]*Connection, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	UpdateTestResult(ctx context.Context, c *Connection) error
}
