package app

import (
	"context"
	"time"

	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/pagination"
)

// AuditService records and queries audit events. Recording is handed to
// the job queue; a failure to enqueue is logged and swallowed so audit
// problems never fail the operation being audited.
type AuditService struct {
	repo       audit.Repository
	dispatcher Dispatcher
	logger     *logger.Logger
}

// NewAuditService creates an AuditService.
func NewAuditService(repo audit.Repository, dispatcher Dispatcher, log *logger.Logger) *AuditService {
	return &AuditService{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     log.With("service", "audit"),
	}
}

// Record hands an event to the background queue. Never returns an error.
func (s *AuditService) Record(ctx context.Context, e *audit.Event) {
	if e == nil {
		return
	}
	if err := s.dispatcher.EnqueueAuditEvent(ctx, e); err != nil {
		s.logger.Warn("failed to enqueue audit event",
			"action", e.Action,
			"resource_type", e.ResourceType,
			"error", err,
		)
	}
}

// List returns audit events matching the filter.
func (s *AuditService) List(ctx context.Context, filter audit.Filter) (pagination.Result[*audit.Event], error) {
	events, err := s.repo.List(ctx, filter)
	if err != nil {
		return pagination.Result[*audit.Event]{}, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return pagination.Result[*audit.Event]{}, err
	}
	return pagination.NewResult(events, total, filter.Pagination), nil
}

// PurgeExpired removes events older than the retention window. Called
// by the retention job.
func (s *AuditService) PurgeExpired(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	deleted, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.logger.Info("purged expired audit events", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}
