package app

import (
	"context"
	"fmt"

	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/domain/user"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/pagination"
	"github.com/connecthub/api/pkg/password"
)

// UserService handles user management operations.
type UserService struct {
	repo   user.Repository
	hasher *password.Hasher
	audit  *AuditService
	logger *logger.Logger
}

// NewUserService creates a UserService.
func NewUserService(repo user.Repository, hasher *password.Hasher, auditSvc *AuditService, log *logger.Logger) *UserService {
	return &UserService{
		repo:   repo,
		hasher: hasher,
		audit:  auditSvc,
		logger: log.With("service", "user"),
	}
}

// CreateUserInput is the input for creating a user.
type CreateUserInput struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=128"`
	Password string `json:"password" validate:"required,min=8"`
}

// Create creates a user.
func (s *UserService) Create(ctx context.Context, actor audit.Actor, input CreateUserInput) (*user.User, error) {
	if err := s.hasher.Validate(input.Password); err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := user.New(input.Username, input.Email, input.FullName, hash)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user created", "user_id", u.ID().String(), "username", u.Username())
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "user.create", "user", u.ID().String()).
		WithResourceName(u.Username()))
	return u, nil
}

// Get retrieves a user by id.
func (s *UserService) Get(ctx context.Context, id string) (*user.User, error) {
	parsedID, err := shared.ParseID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id format", shared.ErrValidation)
	}
	return s.repo.GetByID(ctx, parsedID)
}

// List returns users matching the filter.
func (s *UserService) List(ctx context.Context, filter user.Filter) (pagination.Result[*user.User], error) {
	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return pagination.Result[*user.User]{}, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return pagination.Result[*user.User]{}, err
	}
	return pagination.NewResult(users, total, filter.Pagination), nil
}

// UpdateUserInput is the input for updating a user profile.
type UpdateUserInput struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	FullName *string `json:"full_name" validate:"omitempty,max=128"`
}

// Update changes a user's profile fields.
func (s *UserService) Update(ctx context.Context, actor audit.Actor, id string, input UpdateUserInput) (*user.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	email := u.Email()
	if input.Email != nil {
		email = *input.Email
	}
	fullName := u.FullName()
	if input.FullName != nil {
		fullName = *input.FullName
	}

	if err := u.UpdateProfile(email, fullName); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user updated", "user_id", u.ID().String())
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "user.update", "user", u.ID().String()).
		WithResourceName(u.Username()))
	return u, nil
}

// Suspend deactivates a user account.
func (s *UserService) Suspend(ctx context.Context, actor audit.Actor, id string) (*user.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	u.Suspend()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user suspended", "user_id", u.ID().String())
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "user.suspend", "user", u.ID().String()).
		WithResourceName(u.Username()))
	return u, nil
}

// Activate restores a suspended user account.
func (s *UserService) Activate(ctx context.Context, actor audit.Actor, id string) (*user.User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	u.Activate()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	s.logger.Info("user activated", "user_id", u.ID().String())
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "user.activate", "user", u.ID().String()).
		WithResourceName(u.Username()))
	return u, nil
}

// Delete removes a user. The caller cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor audit.Actor, id string) error {
	parsedID, err := shared.ParseID(id)
	if err != nil {
		return fmt.Errorf("%w: invalid id format", shared.ErrValidation)
	}
	if parsedID.Equals(actor.ID) {
		return fmt.Errorf("%w: cannot delete your own account", shared.ErrValidation)
	}

	if err := s.repo.Delete(ctx, parsedID); err != nil {
		return err
	}

	s.logger.Info("user deleted", "user_id", id)
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "user.delete", "user", id))
	return nil
}

// BulkDeactivate suspends a set of users. Each user succeeds or fails
// independently. The caller's own account is never deactivated; that
// entry is reported as a failure while the rest proceed.
func (s *UserService) BulkDeactivate(ctx context.Context, actor audit.Actor, ids []string) (*BulkResult, error) {
	result := NewBulkResult(len(ids))

	for _, raw := range ids {
		id, err := shared.ParseID(raw)
		if err != nil {
			result.RecordFailure(raw, "invalid id format")
			continue
		}
		if id.Equals(actor.ID) {
			result.RecordFailure(raw, "cannot deactivate your own account")
			continue
		}

		u, err := s.repo.GetByID(ctx, id)
		if err != nil {
			if shared.IsNotFound(err) {
				result.RecordFailure(raw, "user not found")
				continue
			}
			return nil, err
		}

		u.Suspend()
		if err := s.repo.Update(ctx, u); err != nil {
			if shared.IsNotFound(err) {
				result.RecordFailure(raw, "user not found")
				continue
			}
			return nil, err
		}
		result.RecordSuccess()
	}

	s.logger.Info("bulk deactivate completed",
		"total", result.Total, "succeeded", result.Succeeded, "failed", result.Failed)
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "user.bulk_deactivate", "user", "").
		WithMetadata(map[string]any{
			"total":     result.Total,
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
		}))
	return result, nil
}
