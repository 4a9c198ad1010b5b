// Package role defines roles and user-role assignments.
package role

import (
	"fmt"
	"strings"
	"time"

	"github.com/connecthub/api/pkg/domain/shared"
)

// Well-known role names used by route authorization.
const (
	NameAdmin         = "admin"
	NamePlatformAdmin = "platform_admin"
)

// Role is a named grant. Name is unique across the store. System roles
// cannot be deleted or renamed.
type Role struct {
	id          shared.ID
	name        string
	description string
	system      bool
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates a role with a normalized name.
func New(name, description string) (*Role, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", shared.ErrValidation)
	}
	if len(name) > 64 {
		return nil, fmt.Errorf("%w: role name must be at most 64 characters", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &Role{
		id:          shared.NewID(),
		name:        name,
		description: strings.TrimSpace(description),
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstitute rebuilds a role from stored state.
func Reconstitute(id shared.ID, name, description string, system bool, createdAt, updatedAt time.Time) *Role {
	return &Role{
		id:          id,
		name:        name,
		description: description,
		system:      system,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (r *Role) ID() shared.ID        { return r.id }
func (r *Role) Name() string         { return r.name }
func (r *Role) Description() string  { return r.description }
func (r *Role) IsSystem() bool       { return r.system }
func (r *Role) CreatedAt() time.Time { return r.createdAt }
func (r *Role) UpdatedAt() time.Time { return r.updatedAt }

// UpdateDescription changes the description.
func (r *Role) UpdateDescription(description string) {
	r.description = strings.TrimSpace(description)
	r.updatedAt = time.Now().UTC()
}

// Rename changes the role name. System roles keep their name.
func (r *Role) Rename(name string) error {
	if r.system {
		return fmt.Errorf("%w: system roles cannot be renamed", shared.ErrValidation)
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("%w: role name is required", shared.ErrValidation)
	}
	r.name = name
	r.updatedAt = time.Now().UTC()
	return nil
}

// Assignment links a user to a role. A pair exists at most once; removal
// is a hard delete, there is no inactive resting state.
type Assignment struct {
	UserID     shared.ID
	RoleID     shared.ID
	AssignedBy shared.ID
	AssignedAt time.Time
}
