package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/domain/shared"
)

// AuditRepository implements audit.Repository over Postgres.
type AuditRepository struct {
	db *DB
}

var _ audit.Repository = (*AuditRepository)(nil)

// NewAuditRepository creates an AuditRepository.
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts an audit event. Events are append-only.
func (r *AuditRepository) Create(ctx context.Context, e *audit.Event) error {
	metadata, err := toJSONB(e.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_events (id, actor_id, actor_email, actor_ip, actor_user_agent, request_id,
			action, resource_type, resource_id, resource_name, result, severity, message, metadata, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = r.db.ExecContext(ctx, query,
		e.ID, e.Actor.ID, nullString(e.Actor.Email), nullString(e.Actor.IP),
		nullString(e.Actor.UserAgent), nullString(e.Actor.RequestID),
		e.Action, e.ResourceType, nullString(e.ResourceID), nullString(e.ResourceName),
		string(e.Result), string(e.Severity), nullString(e.Message), metadata, e.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit event: %w", err)
	}
	return nil
}

// List returns audit events matching the filter, newest first.
func (r *AuditRepository) List(ctx context.Context, filter audit.Filter) ([]*audit.Event, error) {
	where, args := buildAuditWhere(filter)

	query := fmt.Sprintf(`
		SELECT id, actor_id, actor_email, actor_ip, actor_user_agent, request_id,
			action, resource_type, resource_id, resource_name, result, severity, message, metadata, occurred_at
		FROM audit_events %s
		ORDER BY occurred_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, filter.Pagination.Limit(), filter.Pagination.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	events := make([]*audit.Event, 0)
	for rows.Next() {
		e, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit events: %w", err)
	}
	return events, nil
}

// Count returns the number of audit events matching the filter.
func (r *AuditRepository) Count(ctx context.Context, filter audit.Filter) (int64, error) {
	where, args := buildAuditWhere(filter)

	var count int64
	query := `SELECT COUNT(*) FROM audit_events ` + where
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audit events: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes events before the cutoff and reports how many
// were removed. Used by the retention job.
func (r *AuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM audit_events WHERE occurred_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old audit events: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check delete result: %w", err)
	}
	return rows, nil
}

func scanAuditEvent(rows *sql.Rows) (*audit.Event, error) {
	var (
		e            audit.Event
		actorID      shared.ID
		actorEmail   sql.NullString
		actorIP      sql.NullString
		actorUA      sql.NullString
		requestID    sql.NullString
		resourceID   sql.NullString
		resourceName sql.NullString
		message      sql.NullString
		metadata     []byte
	)
	if err := rows.Scan(&e.ID, &actorID, &actorEmail, &actorIP, &actorUA, &requestID,
		&e.Action, &e.ResourceType, &resourceID, &resourceName, &e.Result, &e.Severity,
		&message, &metadata, &e.OccurredAt); err != nil {
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}

	e.Actor = audit.Actor{
		ID:        actorID,
		Email:     actorEmail.String,
		IP:        actorIP.String,
		UserAgent: actorUA.String,
		RequestID: requestID.String,
	}
	e.ResourceID = resourceID.String
	e.ResourceName = resourceName.String
	e.Message = message.String

	md, err := fromJSONB(metadata)
	if err != nil {
		return nil, err
	}
	e.Metadata = md

	return &e, nil
}

func buildAuditWhere(filter audit.Filter) (string, []any) {
	conditions := make([]string, 0, 6)
	args := make([]any, 0, 6)

	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}
	if filter.ResourceType != "" {
		args = append(args, filter.ResourceType)
		conditions = append(conditions, fmt.Sprintf("resource_type = $%d", len(args)))
	}
	if filter.Result != nil {
		args = append(args, string(*filter.Result))
		conditions = append(conditions, fmt.Sprintf("result = $%d", len(args)))
	}
	if filter.Severity != nil {
		args = append(args, string(*filter.Severity))
		conditions = append(conditions, fmt.Sprintf("severity = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, *filter.Since)
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if filter.Until != nil {
		args = append(args, *filter.Until)
		conditions = append(conditions, fmt.Sprintf("occurred_at <= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
