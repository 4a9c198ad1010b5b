package audit

import (
	"context"
	"time"

	"github.com/connecthub/api/pkg/pagination"
)

// Filter narrows audit log listings.
type Filter struct {
	ActorID      string
	Action       string
	ResourceType string
	Result       *Result
	Severity     *Severity
	Since        *time.Time
	Until        *time.Time
	Pagination   pagination.Pagination
}

// Repository is the persistence contract for audit events.
type Repository interface {
	Create(ctx context.Context, e *Event) error
	List(ctx context.Context, filter Filter) ([]*Event, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
