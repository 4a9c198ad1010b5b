// Package jobs provides background job definitions and handlers using Asynq.
package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/connecthub/api/pkg/domain/audit"
)

// Task types.
const (
	TypeEmailWelcome = "email:welcome"
	TypeAuditEvent   = "audit:event"
	TypeAuditPurge   = "audit:purge"
)

// WelcomeEmailPayload contains data for sending welcome emails.
type WelcomeEmailPayload struct {
	UserEmail string `json:"user_email"`
	UserName  string `json:"user_name"`
	Username  string `json:"username"`
}

// NewWelcomeEmailTask creates a welcome email task.
func NewWelcomeEmailTask(payload WelcomeEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal welcome email payload: %w", err)
	}
	return asynq.NewTask(
		TypeEmailWelcome,
		data,
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
		asynq.Queue("email"),
	), nil
}

// NewAuditEventTask creates a task that persists one audit event.
func NewAuditEventTask(e *audit.Event) (*asynq.Task, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal audit event: %w", err)
	}
	return asynq.NewTask(
		TypeAuditEvent,
		data,
		asynq.MaxRetry(5),
		asynq.Timeout(15*time.Second),
		asynq.Queue("audit"),
	), nil
}

// NewAuditPurgeTask creates the periodic audit retention task.
func NewAuditPurgeTask() *asynq.Task {
	return asynq.NewTask(
		TypeAuditPurge,
		nil,
		asynq.MaxRetry(1),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("maintenance"),
	)
}
