package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/domain/user"
)

// UserRepository implements user.Repository over Postgres.
type UserRepository struct {
	db *DB
}

var _ user.Repository = (*UserRepository)(nil)

// NewUserRepository creates a UserRepository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, email, full_name, password_hash, status, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*user.User, error) {
	var (
		id           shared.ID
		username     string
		email        string
		fullName     string
		passwordHash string
		status       string
		createdAt    time.Time
		updatedAt    time.Time
	)
	if err := row.Scan(&id, &username, &email, &fullName, &passwordHash, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return user.Reconstitute(id, username, email, fullName, passwordHash, user.Status(status), createdAt, updatedAt), nil
}

// Create inserts a user. Unique violations on username or email map to
// the corresponding domain errors.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (id, username, email, full_name, password_hash, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		u.ID(), u.Username(), u.Email(), u.FullName(), u.PasswordHash(),
		string(u.Status()), u.CreatedAt(), u.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return r.conflictError(err)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Update persists the mutable fields of an existing user.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	query := `
		UPDATE users
		SET email = $2, full_name = $3, password_hash = $4, status = $5, updated_at = $6
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		u.ID(), u.Email(), u.FullName(), u.PasswordHash(), string(u.Status()), u.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return r.conflictError(err)
		}
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return user.NotFoundError(u.ID())
	}
	return nil
}

// Delete removes a user. Assignments cascade at the schema level.
func (r *UserRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return user.NotFoundError(id)
	}
	return nil
}

// GetByID fetches a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id shared.ID) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.NotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByUsername fetches a user by normalized username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, strings.ToLower(username)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, strings.ToLower(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// GetByIDs fetches users for a set of ids. Missing ids are simply
// absent from the result.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []shared.ID) ([]*user.User, error) {
	if len(ids) == 0 {
		return []*user.User{}, nil
	}

	raw := make([]string, len(ids))
	for i, id := range ids {
		raw[i] = id.String()
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to get users by ids: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// List returns users matching the filter.
func (r *UserRepository) List(ctx context.Context, filter user.Filter) ([]*user.User, error) {
	where, args := buildUserWhere(filter)

	orderBy := "created_at DESC"
	if filter.Sort != nil {
		orderBy = filter.Sort.SQLWithDefault(orderBy)
	}

	query := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		userColumns, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, filter.Pagination.Limit(), filter.Pagination.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// Count returns the number of users matching the filter.
func (r *UserRepository) Count(ctx context.Context, filter user.Filter) (int64, error) {
	where, args := buildUserWhere(filter)

	var count int64
	query := `SELECT COUNT(*) FROM users ` + where
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// ExistsByUsername reports whether a user with the username exists.
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`
	if err := r.db.QueryRowContext(ctx, query, strings.ToLower(username)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// ExistsByEmail reports whether a user with the email exists.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`
	if err := r.db.QueryRowContext(ctx, query, strings.ToLower(email)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) conflictError(err error) error {
	switch {
	case strings.Contains(violatedConstraint(err), "email"):
		return user.ErrEmailTaken
	default:
		return user.ErrUsernameTaken
	}
}

func buildUserWhere(filter user.Filter) (string, []any) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf(
			"(username LIKE $%d OR email LIKE $%d OR LOWER(full_name) LIKE $%d)",
			len(args), len(args), len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

func collectUsers(rows *sql.Rows) ([]*user.User, error) {
	users := make([]*user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	return users, nil
}
