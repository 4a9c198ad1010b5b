package app

import (
	"context"
	"fmt"
	"time"

	"github.com/connecthub/api/internal/metrics"
	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/domain/role"
	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/domain/user"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/pagination"
)

// RoleService handles roles and user-role assignments.
type RoleService struct {
	roles  role.Repository
	users  user.Repository
	cache  RoleCacheInvalidator
	audit  *AuditService
	logger *logger.Logger
}

// NewRoleService creates a RoleService.
func NewRoleService(roles role.Repository, users user.Repository, cache RoleCacheInvalidator, auditSvc *AuditService, log *logger.Logger) *RoleService {
	return &RoleService{
		roles:  roles,
		users:  users,
		cache:  cache,
		audit:  auditSvc,
		logger: log.With("service", "role"),
	}
}

// CreateRoleInput is the input for creating a role.
type CreateRoleInput struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=256"`
}

// Create creates a role.
func (s *RoleService) Create(ctx context.Context, actor audit.Actor, input CreateRoleInput) (*role.Role, error) {
	r, err := role.New(input.Name, input.Description)
	if err != nil {
		return nil, err
	}

	if err := s.roles.Create(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Info("role created", "role_id", r.ID().String(), "name", r.Name())
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "role.create", "role", r.ID().String()).
		WithResourceName(r.Name()))
	return r, nil
}

// Get retrieves a role by id.
func (s *RoleService) Get(ctx context.Context, id string) (*role.Role, error) {
	parsedID, err := shared.ParseID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id format", shared.ErrValidation)
	}
	return s.roles.GetByID(ctx, parsedID)
}

// List returns roles matching the filter.
func (s *RoleService) List(ctx context.Context, filter role.Filter) (pagination.Result[*role.Role], error) {
	roles, err := s.roles.List(ctx, filter)
	if err != nil {
		return pagination.Result[*role.Role]{}, err
	}
	total, err := s.roles.Count(ctx, filter)
	if err != nil {
		return pagination.Result[*role.Role]{}, err
	}
	return pagination.NewResult(roles, total, filter.Pagination), nil
}

// UpdateRoleInput is the input for updating a role.
type UpdateRoleInput struct {
	Name        *string `json:"name" validate:"omitempty,max=64"`
	Description *string `json:"description" validate:"omitempty,max=256"`
}

// Update changes a role's name or description.
func (s *RoleService) Update(ctx context.Context, actor audit.Actor, id string, input UpdateRoleInput) (*role.Role, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if err := r.Rename(*input.Name); err != nil {
			return nil, err
		}
	}
	if input.Description != nil {
		r.UpdateDescription(*input.Description)
	}

	if err := s.roles.Update(ctx, r); err != nil {
		return nil, err
	}

	s.logger.Info("role updated", "role_id", r.ID().String())
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "role.update", "role", r.ID().String()).
		WithResourceName(r.Name()))
	return r, nil
}

// Delete removes a non-system role. Users holding it lose the role via
// the schema-level cascade; their cached role sets are invalidated.
func (s *RoleService) Delete(ctx context.Context, actor audit.Actor, id string) error {
	parsedID, err := shared.ParseID(id)
	if err != nil {
		return fmt.Errorf("%w: invalid id format", shared.ErrValidation)
	}

	holders, err := s.roles.ListUserIDsForRole(ctx, parsedID)
	if err != nil {
		return err
	}

	if err := s.roles.Delete(ctx, parsedID); err != nil {
		return err
	}

	s.invalidate(ctx, holders...)
	s.logger.Info("role deleted", "role_id", id)
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "role.delete", "role", id))
	return nil
}

// ListForUser returns the roles held by a user.
func (s *RoleService) ListForUser(ctx context.Context, userID string) ([]*role.Role, error) {
	parsedID, err := shared.ParseID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id format", shared.ErrValidation)
	}
	if _, err := s.users.GetByID(ctx, parsedID); err != nil {
		return nil, err
	}
	return s.roles.ListRolesForUser(ctx, parsedID)
}

// RoleNamesForUser returns the role names held by a user. Used by the
// auth middleware as the cache loader.
func (s *RoleService) RoleNamesForUser(ctx context.Context, userID shared.ID) ([]string, error) {
	roles, err := s.roles.ListRolesForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name()
	}
	return names, nil
}

// AssignRoles replaces a user's role set with the target set. The diff
// against the current assignments is applied in one transaction: either
// every add and remove lands or none do. After success the user holds
// exactly the target roles.
//
// A missing user is a not-found error. A missing role in the target set
// is a validation error and aborts the whole operation; role state is
// never left partially applied.
func (s *RoleService) AssignRoles(ctx context.Context, actor audit.Actor, userID string, roleIDs []string) error {
	parsedUserID, err := shared.ParseID(userID)
	if err != nil {
		return fmt.Errorf("%w: invalid user id format", shared.ErrValidation)
	}

	u, err := s.users.GetByID(ctx, parsedUserID)
	if err != nil {
		return err
	}

	target := make(map[shared.ID]struct{}, len(roleIDs))
	targetIDs := make([]shared.ID, 0, len(roleIDs))
	for _, raw := range roleIDs {
		id, err := shared.ParseID(raw)
		if err != nil {
			return fmt.Errorf("%w: invalid role id %q", shared.ErrValidation, raw)
		}
		if _, seen := target[id]; seen {
			continue
		}
		target[id] = struct{}{}
		targetIDs = append(targetIDs, id)
	}

	// Every target role must exist before anything is applied.
	found, err := s.roles.GetByIDs(ctx, targetIDs)
	if err != nil {
		return err
	}
	if len(found) != len(targetIDs) {
		known := make(map[shared.ID]struct{}, len(found))
		for _, r := range found {
			known[r.ID()] = struct{}{}
		}
		for _, id := range targetIDs {
			if _, ok := known[id]; !ok {
				return fmt.Errorf("%w: role %q does not exist", shared.ErrValidation, id.String())
			}
		}
	}

	current, err := s.roles.ListRoleIDsForUser(ctx, parsedUserID)
	if err != nil {
		return err
	}
	currentSet := make(map[shared.ID]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
	}

	now := time.Now().UTC()
	add := make([]role.Assignment, 0)
	for _, id := range targetIDs {
		if _, held := currentSet[id]; !held {
			add = append(add, role.Assignment{
				UserID:     parsedUserID,
				RoleID:     id,
				AssignedBy: actor.ID,
				AssignedAt: now,
			})
		}
	}
	remove := make([]shared.ID, 0)
	for _, id := range current {
		if _, wanted := target[id]; !wanted {
			remove = append(remove, id)
		}
	}

	if err := s.roles.ReplaceForUser(ctx, parsedUserID, add, remove); err != nil {
		metrics.RoleAssignmentsTotal.WithLabelValues("replace", "failed").Inc()
		return err
	}
	metrics.RoleAssignmentsTotal.WithLabelValues("replace", "success").Inc()

	s.invalidate(ctx, parsedUserID)
	s.logger.Info("role set replaced",
		"user_id", userID, "added", len(add), "removed", len(remove))
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "role.assign_roles", "user", userID).
		WithResourceName(u.Username()).
		WithMetadata(map[string]any{
			"target_roles": len(targetIDs),
			"added":        len(add),
			"removed":      len(remove),
		}))
	return nil
}

// RemoveRolesFromUser removes specific roles from a user. Each pair is
// independent: removing an assignment the user does not hold reports a
// not-found failure for that pair only.
func (s *RoleService) RemoveRolesFromUser(ctx context.Context, actor audit.Actor, userID string, roleIDs []string) (*BulkResult, error) {
	parsedUserID, err := shared.ParseID(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid user id format", shared.ErrValidation)
	}
	u, err := s.users.GetByID(ctx, parsedUserID)
	if err != nil {
		return nil, err
	}

	result := NewBulkResult(len(roleIDs))
	for _, raw := range roleIDs {
		roleID, err := shared.ParseID(raw)
		if err != nil {
			result.RecordFailure(raw, "invalid role id format")
			continue
		}

		rows, err := s.roles.Remove(ctx, parsedUserID, roleID)
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			result.RecordFailure(raw, "role assignment not found")
			metrics.RoleAssignmentsTotal.WithLabelValues("remove", "failed").Inc()
			continue
		}
		result.RecordSuccess()
		metrics.RoleAssignmentsTotal.WithLabelValues("remove", "success").Inc()
	}

	s.invalidate(ctx, parsedUserID)
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "role.remove_roles", "user", userID).
		WithResourceName(u.Username()).
		WithMetadata(bulkMetadata(result)))
	return result, nil
}

// AssignUsersToRole adds one role to a set of users. Each pair is
// independent: a missing user fails that pair only, and assigning a
// role a user already holds is a no-op success.
func (s *RoleService) AssignUsersToRole(ctx context.Context, actor audit.Actor, roleID string, userIDs []string) (*BulkResult, error) {
	parsedRoleID, err := shared.ParseID(roleID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid role id format", shared.ErrValidation)
	}
	r, err := s.roles.GetByID(ctx, parsedRoleID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := NewBulkResult(len(userIDs))
	touched := make([]shared.ID, 0, len(userIDs))

	for _, raw := range userIDs {
		userID, err := shared.ParseID(raw)
		if err != nil {
			result.RecordFailure(raw, "invalid user id format")
			continue
		}

		err = s.roles.Assign(ctx, role.Assignment{
			UserID:     userID,
			RoleID:     parsedRoleID,
			AssignedBy: actor.ID,
			AssignedAt: now,
		})
		if err != nil {
			if shared.IsNotFound(err) {
				result.RecordFailure(raw, "user not found")
				metrics.RoleAssignmentsTotal.WithLabelValues("assign", "failed").Inc()
				continue
			}
			return nil, err
		}
		result.RecordSuccess()
		touched = append(touched, userID)
		metrics.RoleAssignmentsTotal.WithLabelValues("assign", "success").Inc()
	}

	s.invalidate(ctx, touched...)
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "role.assign_users", "role", roleID).
		WithResourceName(r.Name()).
		WithMetadata(bulkMetadata(result)))
	return result, nil
}

// RemoveUsersFromRole removes one role from a set of users. Each pair
// is independent; a pair with no assignment reports not-found.
func (s *RoleService) RemoveUsersFromRole(ctx context.Context, actor audit.Actor, roleID string, userIDs []string) (*BulkResult, error) {
	parsedRoleID, err := shared.ParseID(roleID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid role id format", shared.ErrValidation)
	}
	r, err := s.roles.GetByID(ctx, parsedRoleID)
	if err != nil {
		return nil, err
	}

	result := NewBulkResult(len(userIDs))
	touched := make([]shared.ID, 0, len(userIDs))

	for _, raw := range userIDs {
		userID, err := shared.ParseID(raw)
		if err != nil {
			result.RecordFailure(raw, "invalid user id format")
			continue
		}

		rows, err := s.roles.Remove(ctx, userID, parsedRoleID)
		if err != nil {
			return nil, err
		}
		if rows == 0 {
			result.RecordFailure(raw, "role assignment not found")
			metrics.RoleAssignmentsTotal.WithLabelValues("remove", "failed").Inc()
			continue
		}
		result.RecordSuccess()
		touched = append(touched, userID)
		metrics.RoleAssignmentsTotal.WithLabelValues("remove", "success").Inc()
	}

	s.invalidate(ctx, touched...)
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "role.remove_users", "role", roleID).
		WithResourceName(r.Name()).
		WithMetadata(bulkMetadata(result)))
	return result, nil
}

func (s *RoleService) invalidate(ctx context.Context, userIDs ...shared.ID) {
	if s.cache == nil || len(userIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, userIDs...); err != nil {
		s.logger.Warn("failed to invalidate role cache", "error", err)
	}
}

func bulkMetadata(r *BulkResult) map[string]any {
	return map[string]any{
		"total":     r.Total,
		"succeeded": r.Succeeded,
		"failed":    r.Failed,
	}
}
