package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/connecthub/api/pkg/domain/role"
	"github.com/connecthub/api/pkg/domain/shared"
)

// RoleRepository implements role.Repository over Postgres.
type RoleRepository struct {
	db *DB
}

var _ role.Repository = (*RoleRepository)(nil)

// NewRoleRepository creates a RoleRepository.
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

const roleColumns = `id, name, description, is_system, created_at, updated_at`

func scanRole(row interface{ Scan(...any) error }) (*role.Role, error) {
	var (
		id          shared.ID
		name        string
		description string
		system      bool
		createdAt   time.Time
		updatedAt   time.Time
	)
	if err := row.Scan(&id, &name, &description, &system, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return role.Reconstitute(id, name, description, system, createdAt, updatedAt), nil
}

// Create inserts a role.
func (r *RoleRepository) Create(ctx context.Context, rl *role.Role) error {
	query := `
		INSERT INTO roles (id, name, description, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query,
		rl.ID(), rl.Name(), rl.Description(), rl.IsSystem(), rl.CreatedAt(), rl.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return role.ErrRoleNameTaken
		}
		return fmt.Errorf("failed to create role: %w", err)
	}
	return nil
}

// Update persists the mutable fields of an existing role.
func (r *RoleRepository) Update(ctx context.Context, rl *role.Role) error {
	query := `
		UPDATE roles
		SET name = $2, description = $3, updated_at = $4
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, rl.ID(), rl.Name(), rl.Description(), rl.UpdatedAt())
	if err != nil {
		if isUniqueViolation(err) {
			return role.ErrRoleNameTaken
		}
		return fmt.Errorf("failed to update role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return role.NotFoundError(rl.ID())
	}
	return nil
}

// Delete removes a non-system role. Assignments cascade.
func (r *RoleRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1 AND is_system = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		// Either the role is missing or it is a system role; look
		// once more to report the right error.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return role.ErrSystemRole
	}
	return nil
}

// GetByID fetches a role by id.
func (r *RoleRepository) GetByID(ctx context.Context, id shared.ID) (*role.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = $1`

	rl, err := scanRole(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, role.NotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return rl, nil
}

// GetByName fetches a role by normalized name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*role.Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles WHERE name = $1`

	rl, err := scanRole(r.db.QueryRowContext(ctx, query, strings.ToLower(name)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, role.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to get role by name: %w", err)
	}
	return rl, nil
}

// GetByIDs fetches roles for a set of ids. Missing ids are absent from
// the result.
func (r *RoleRepository) GetByIDs(ctx context.Context, ids []shared.ID) ([]*role.Role, error) {
	if len(ids) == 0 {
		return []*role.Role{}, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	query := `SELECT ` + roleColumns + ` FROM roles WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to get roles by ids: %w", err)
	}
	defer rows.Close()

	return collectRoles(rows)
}

// List returns roles matching the filter.
func (r *RoleRepository) List(ctx context.Context, filter role.Filter) ([]*role.Role, error) {
	where, args := buildRoleWhere(filter)

	orderBy := "name ASC"
	if filter.Sort != nil {
		orderBy = filter.Sort.SQLWithDefault(orderBy)
	}

	query := fmt.Sprintf(`SELECT %s FROM roles %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		roleColumns, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, filter.Pagination.Limit(), filter.Pagination.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	defer rows.Close()

	return collectRoles(rows)
}

// Count returns the number of roles matching the filter.
func (r *RoleRepository) Count(ctx context.Context, filter role.Filter) (int64, error) {
	where, args := buildRoleWhere(filter)

	var count int64
	query := `SELECT COUNT(*) FROM roles ` + where
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count roles: %w", err)
	}
	return count, nil
}

// ExistsByName reports whether a role with the name exists.
func (r *RoleRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM roles WHERE name = $1)`
	if err := r.db.QueryRowContext(ctx, query, strings.ToLower(name)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check role name: %w", err)
	}
	return exists, nil
}

// Assign links a user to a role. Assigning an existing pair is a no-op.
func (r *RoleRepository) Assign(ctx context.Context, a role.Assignment) error {
	query := `
		INSERT INTO user_roles (user_id, role_id, assigned_by, assigned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, role_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query, a.UserID, a.RoleID, a.AssignedBy, a.AssignedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return r.assignReferenceError(ctx, a.UserID, a.RoleID)
		}
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}

// Remove hard-deletes an assignment and reports the rows removed.
func (r *RoleRepository) Remove(ctx context.Context, userID, roleID shared.ID) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove role assignment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check remove result: %w", err)
	}
	return rows, nil
}

// ListRoleIDsForUser returns the ids of the roles held by a user.
func (r *RoleRepository) ListRoleIDsForUser(ctx context.Context, userID shared.ID) ([]shared.ID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT role_id FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role ids for user: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// ListRolesForUser returns the roles held by a user.
func (r *RoleRepository) ListRolesForUser(ctx context.Context, userID shared.ID) ([]*role.Role, error) {
	query := `
		SELECT r.id, r.name, r.description, r.is_system, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.name ASC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles for user: %w", err)
	}
	defer rows.Close()

	return collectRoles(rows)
}

// ListUserIDsForRole returns the ids of the users holding a role.
func (r *RoleRepository) ListUserIDsForRole(ctx context.Context, roleID shared.ID) ([]shared.ID, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM user_roles WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user ids for role: %w", err)
	}
	defer rows.Close()

	return collectIDs(rows)
}

// ReplaceForUser applies an add/remove diff for one user in a single
// transaction. Either every change lands or none do.
func (r *RoleRepository) ReplaceForUser(ctx context.Context, userID shared.ID, add []role.Assignment, remove []shared.ID) error {
	if len(add) == 0 && len(remove) == 0 {
		return nil
	}

	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		if len(remove) > 0 {
			raw := make([]string, len(remove))
			for i, id := range remove {
				raw[i] = id.String()
			}
			_, err := tx.ExecContext(ctx,
				`DELETE FROM user_roles WHERE user_id = $1 AND role_id = ANY($2)`,
				userID, pq.Array(raw))
			if err != nil {
				return fmt.Errorf("failed to remove role assignments: %w", err)
			}
		}

		if len(add) > 0 {
			query := `
				INSERT INTO user_roles (user_id, role_id, assigned_by, assigned_at)
				VALUES ` + buildPlaceholders(len(add), 4) + `
				ON CONFLICT (user_id, role_id) DO NOTHING`

			args := make([]any, 0, len(add)*4)
			for _, a := range add {
				args = append(args, a.UserID, a.RoleID, a.AssignedBy, a.AssignedAt)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				if isForeignKeyViolation(err) {
					return role.ErrRoleNotFound
				}
				return fmt.Errorf("failed to add role assignments: %w", err)
			}
		}

		return nil
	})
}

func (r *RoleRepository) assignReferenceError(ctx context.Context, userID, roleID shared.ID) error {
	if _, err := r.GetByID(ctx, roleID); err != nil {
		return err
	}
	return fmt.Errorf("user %q %w", userID.String(), shared.ErrNotFound)
}

func buildRoleWhere(filter role.Filter) (string, []any) {
	conditions := make([]string, 0, 1)
	args := make([]any, 0, 1)

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf(
			"(name LIKE $%d OR LOWER(description) LIKE $%d)", len(args), len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func collectRoles(rows *sql.Rows) ([]*role.Role, error) {
	roles := make([]*role.Role, 0)
	for rows.Next() {
		rl, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, rl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read roles: %w", err)
	}
	return roles, nil
}

func collectIDs(rows *sql.Rows) ([]shared.ID, error) {
	ids := make([]shared.ID, 0)
	for rows.Next() {
		var id shared.ID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ids: %w", err)
	}
	return ids, nil
}
