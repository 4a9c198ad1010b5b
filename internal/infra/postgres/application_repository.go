package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/connecthub/api/pkg/domain/application"
	"github.com/connecthub/api/pkg/domain/shared"
)

// ApplicationRepository implements application.Repository over Postgres.
type ApplicationRepository struct {
	db *DB
}

var _ application.Repository = (*ApplicationRepository)(nil)

// NewApplicationRepository creates an ApplicationRepository.
func NewApplicationRepository(db *DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

const applicationColumns = `id, name, description, url, owner_email, enabled, created_at, updated_at`

func scanApplication(row interface{ Scan(...any) error }) (*application.Application, error) {
	var (
		id          shared.ID
		name        string
		description string
		rawURL      sql.NullString
		ownerEmail  sql.NullString
		enabled     bool
		createdAt   time.Time
		updatedAt   time.Time
	)
	if err := row.Scan(&id, &name, &description, &rawURL, &ownerEmail, &enabled, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return application.Reconstitute(id, name, description, rawURL.String, ownerEmail.String, enabled, createdAt, updatedAt), nil
}

// Create inserts an application.
func (r *ApplicationRepository) Create(ctx context.Context, a *application.Application) error {
	query := `
		INSERT INTO applications (id, name, description, url, owner_email, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID(), a.Name(), a.Description(), nullString(a.URL()), nullString(a.OwnerEmail()),
		a.IsEnabled(), a.CreatedAt(), a.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return application.ErrNameTaken
		}
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

// Update persists the mutable fields of an existing application.
func (r *ApplicationRepository) Update(ctx context.Context, a *application.Application) error {
	query := `
		UPDATE applications
		SET description = $2, url = $3, owner_email = $4, enabled = $5, updated_at = $6
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		a.ID(), a.Description(), nullString(a.URL()), nullString(a.OwnerEmail()),
		a.IsEnabled(), a.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return application.NotFoundError(a.ID())
	}
	return nil
}

// Delete removes an application.
func (r *ApplicationRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete application: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return application.NotFoundError(id)
	}
	return nil
}

// GetByID fetches an application by id.
func (r *ApplicationRepository) GetByID(ctx context.Context, id shared.ID) (*application.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`

	a, err := scanApplication(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, application.NotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return a, nil
}

// GetByName fetches an application by name.
func (r *ApplicationRepository) GetByName(ctx context.Context, name string) (*application.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE name = $1`

	a, err := scanApplication(r.db.QueryRowContext(ctx, query, strings.TrimSpace(name)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, application.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to get application by name: %w", err)
	}
	return a, nil
}

// List returns applications matching the filter.
func (r *ApplicationRepository) List(ctx context.Context, filter application.Filter) ([]*application.Application, error) {
	where, args := buildApplicationWhere(filter)

	orderBy := "name ASC"
	if filter.Sort != nil {
		orderBy = filter.Sort.SQLWithDefault(orderBy)
	}

	query := fmt.Sprintf(`SELECT %s FROM applications %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		applicationColumns, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, filter.Pagination.Limit(), filter.Pagination.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	apps := make([]*application.Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read applications: %w", err)
	}
	return apps, nil
}

// Count returns the number of applications matching the filter.
func (r *ApplicationRepository) Count(ctx context.Context, filter application.Filter) (int64, error) {
	where, args := buildApplicationWhere(filter)

	var count int64
	query := `SELECT COUNT(*) FROM applications ` + where
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count applications: %w", err)
	}
	return count, nil
}

// ExistsByName reports whether an application with the name exists.
func (r *ApplicationRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM applications WHERE name = $1)`
	if err := r.db.QueryRowContext(ctx, query, strings.TrimSpace(name)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check application name: %w", err)
	}
	return exists, nil
}

func buildApplicationWhere(filter application.Filter) (string, []any) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(name) LIKE $%d OR LOWER(description) LIKE $%d)", len(args), len(args)))
	}
	if filter.Enabled != nil {
		args = append(args, *filter.Enabled)
		conditions = append(conditions, fmt.Sprintf("enabled = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
