package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/connecthub/api/pkg/domain/connection"
	"github.com/connecthub/api/pkg/domain/shared"
)

// ConnectionRepository implements connection.Repository over Postgres.
type ConnectionRepository struct {
	db *DB
}

var _ connection.Repository = (*ConnectionRepository)(nil)

// NewConnectionRepository creates a ConnectionRepository.
func NewConnectionRepository(db *DB) *ConnectionRepository {
	return &ConnectionRepository{db: db}
}

const connectionColumns = `id, name, driver, host, port, database_name, username, secret_ref, test_schedule, last_status, last_tested_at, created_at, updated_at`

func scanConnection(row interface{ Scan(...any) error }) (*connection.Connection, error) {
	var (
		id           shared.ID
		name         string
		driver       string
		host         string
		port         int
		database     string
		username     string
		secretRef    sql.NullString
		testSchedule sql.NullString
		lastStatus   string
		lastTestedAt sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
	)
	if err := row.Scan(&id, &name, &driver, &host, &port, &database, &username,
		&secretRef, &testSchedule, &lastStatus, &lastTestedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	return connection.Reconstitute(id, name, connection.Driver(driver), host, port, database, username,
		secretRef.String, testSchedule.String, connection.TestStatus(lastStatus),
		timePtr(lastTestedAt), createdAt, updatedAt), nil
}

// Create inserts a connection.
func (r *ConnectionRepository) Create(ctx context.Context, c *connection.Connection) error {
	query := `
		INSERT INTO connections (id, name, driver, host, port, database_name, username, secret_ref, test_schedule, last_status, last_tested_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		c.ID(), c.Name(), string(c.Driver()), c.Host(), c.Port(), c.Database(), c.Username(),
		nullString(c.SecretRef()), nullString(c.TestSchedule()), string(c.LastStatus()),
		nullTime(c.LastTestedAt()), c.CreatedAt(), c.UpdatedAt(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return connection.ErrNameTaken
		}
		return fmt.Errorf("failed to create connection: %w", err)
	}
	return nil
}

// Update persists the mutable fields of an existing connection.
func (r *ConnectionRepository) Update(ctx context.Context, c *connection.Connection) error {
	query := `
		UPDATE connections
		SET host = $2, port = $3, database_name = $4, username = $5, secret_ref = $6, test_schedule = $7, updated_at = $8
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		c.ID(), c.Host(), c.Port(), c.Database(), c.Username(),
		nullString(c.SecretRef()), nullString(c.TestSchedule()), c.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to update connection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return connection.NotFoundError(c.ID())
	}
	return nil
}

// Delete removes a connection.
func (r *ConnectionRepository) Delete(ctx context.Context, id shared.ID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete connection: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return connection.NotFoundError(id)
	}
	return nil
}

// GetByID fetches a connection by id.
func (r *ConnectionRepository) GetByID(ctx context.Context, id shared.ID) (*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE id = $1`

	c, err := scanConnection(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, connection.NotFoundError(id)
		}
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	return c, nil
}

// GetByName fetches a connection by name.
func (r *ConnectionRepository) GetByName(ctx context.Context, name string) (*connection.Connection, error) {
	query := `SELECT ` + connectionColumns + ` FROM connections WHERE name = $1`

	c, err := scanConnection(r.db.QueryRowContext(ctx, query, strings.TrimSpace(name)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, connection.ErrConnectionNotFound
		}
		return nil, fmt.Errorf("failed to get connection by name: %w", err)
	}
	return c, nil
}

// List returns connections matching the filter.
func (r *ConnectionRepository) List(ctx context.Context, filter connection.Filter) ([]*connection.Connection, error) {
	where, args := buildConnectionWhere(filter)

	orderBy := "name ASC"
	if filter.Sort != nil {
		orderBy = filter.Sort.SQLWithDefault(orderBy)
	}

	query := fmt.Sprintf(`SELECT %s FROM connections %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		connectionColumns, where, orderBy, len(args)+1, len(args)+2)
	args = append(args, filter.Pagination.Limit(), filter.Pagination.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	conns := make([]*connection.Connection, 0)
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		conns = append(conns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read connections: %w", err)
	}
	return conns, nil
}

// Count returns the number of connections matching the filter.
func (r *ConnectionRepository) Count(ctx context.Context, filter connection.Filter) (int64, error) {
	where, args := buildConnectionWhere(filter)

	var count int64
	query := `SELECT COUNT(*) FROM connections ` + where
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count connections: %w", err)
	}
	return count, nil
}

// ExistsByName reports whether a connection with the name exists.
func (r *ConnectionRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM connections WHERE name = $1)`
	if err := r.db.QueryRowContext(ctx, query, strings.TrimSpace(name)).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check connection name: %w", err)
	}
	return exists, nil
}

// UpdateTestResult stores only the outcome of a connectivity test.
func (r *ConnectionRepository) UpdateTestResult(ctx context.Context, c *connection.Connection) error {
	query := `
		UPDATE connections
		SET last_status = $2, last_tested_at = $3, updated_at = $4
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		c.ID(), string(c.LastStatus()), nullTime(c.LastTestedAt()), c.UpdatedAt())
	if err != nil {
		return fmt.Errorf("failed to update connection test result: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return connection.NotFoundError(c.ID())
	}
	return nil
}

func buildConnectionWhere(filter connection.Filter) (string, []any) {
	conditions := make([]string, 0, 2)
	args := make([]any, 0, 2)

	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(name) LIKE $%d OR LOWER(host) LIKE $%d)", len(args), len(args)))
	}
	if filter.Driver != nil {
		args = append(args, string(*filter.Driver))
		conditions = append(conditions, fmt.Sprintf("driver = $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
