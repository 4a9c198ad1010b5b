package app

import (
	"context"
	"fmt"

	"github.com/connecthub/api/pkg/domain/application"
	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/pagination"
)

// ApplicationService handles registered application management.
type ApplicationService struct {
	repo   application.Repository
	audit  *AuditService
	logger *logger.Logger
}

// NewApplicationService creates an ApplicationService.
func NewApplicationService(repo application.Repository, auditSvc *AuditService, log *logger.Logger) *ApplicationService {
	return &ApplicationService{
		repo:   repo,
		audit:  auditSvc,
		logger: log.With("service", "application"),
	}
}

// CreateApplicationInput is the input for registering an application.
type CreateApplicationInput struct {
	Name        string `json:"name" validate:"required,max=128"`
	Description string `json:"description" validate:"max=256"`
	URL         string `json:"url" validate:"omitempty,url"`
	OwnerEmail  string `json:"owner_email" validate:"omitempty,email"`
}

// Create registers an application.
func (s *ApplicationService) Create(ctx context.Context, actor audit.Actor, input CreateApplicationInput) (*application.Application, error) {
	a, err := application.New(input.Name, input.Description, input.URL, input.OwnerEmail)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("application created", "application_id", a.ID().String(), "name", a.Name())
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "application.create", "application", a.ID().String()).
		WithResourceName(a.Name()))
	return a, nil
}

// Get retrieves an application by id.
func (s *ApplicationService) Get(ctx context.Context, id string) (*application.Application, error) {
	parsedID, err := shared.ParseID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id format", shared.ErrValidation)
	}
	return s.repo.GetByID(ctx, parsedID)
}

// List returns applications matching the filter.
func (s *ApplicationService) List(ctx context.Context, filter application.Filter) (pagination.Result[*application.Application], error) {
	apps, err := s.repo.List(ctx, filter)
	if err != nil {
		return pagination.Result[*application.Application]{}, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return pagination.Result[*application.Application]{}, err
	}
	return pagination.NewResult(apps, total, filter.Pagination), nil
}

// UpdateApplicationInput is the input for updating an application.
type UpdateApplicationInput struct {
	Description *string `json:"description" validate:"omitempty,max=256"`
	URL         *string `json:"url" validate:"omitempty,url"`
	OwnerEmail  *string `json:"owner_email" validate:"omitempty,email"`
	Enabled     *bool   `json:"enabled"`
}

// Update changes an application's mutable fields.
func (s *ApplicationService) Update(ctx context.Context, actor audit.Actor, id string, input UpdateApplicationInput) (*application.Application, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	description := a.Description()
	if input.Description != nil {
		description = *input.Description
	}
	rawURL := a.URL()
	if input.URL != nil {
		rawURL = *input.URL
	}
	ownerEmail := a.OwnerEmail()
	if input.OwnerEmail != nil {
		ownerEmail = *input.OwnerEmail
	}

	if err := a.Update(description, rawURL, ownerEmail); err != nil {
		return nil, err
	}
	if input.Enabled != nil {
		if *input.Enabled {
			a.Enable()
		} else {
			a.Disable()
		}
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("application updated", "application_id", a.ID().String())
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "application.update", "application", a.ID().String()).
		WithResourceName(a.Name()))
	return a, nil
}

// Delete removes an application.
func (s *ApplicationService) Delete(ctx context.Context, actor audit.Actor, id string) error {
	parsedID, err := shared.ParseID(id)
	if err != nil {
		return fmt.Errorf("%w: invalid id format", shared.ErrValidation)
	}

	if err := s.repo.Delete(ctx, parsedID); err != nil {
		return err
	}

	s.logger.Info("application deleted", "application_id", id)
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "application.delete", "application", id))
	return nil
}
