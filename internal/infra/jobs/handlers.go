package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/connecthub/api/internal/metrics"
	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/email"
	"github.com/connecthub/api/pkg/logger"
)

// EmailTaskHandler handles email tasks.
type EmailTaskHandler struct {
	sender   *email.Sender
	appName  string
	loginURL string
	logger   *logger.Logger
}

// NewEmailTaskHandler creates an EmailTaskHandler.
func NewEmailTaskHandler(sender *email.Sender, appName, loginURL string, log *logger.Logger) *EmailTaskHandler {
	return &EmailTaskHandler{
		sender:   sender,
		appName:  appName,
		loginURL: loginURL,
		logger:   log.With("component", "email_handler"),
	}
}

// HandleWelcomeEmail sends a welcome email to a newly created user.
func (h *EmailTaskHandler) HandleWelcomeEmail(ctx context.Context, t *asynq.Task) error {
	var payload WelcomeEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// Malformed payloads cannot succeed on retry.
		return fmt.Errorf("failed to unmarshal welcome email payload: %v: %w", err, asynq.SkipRetry)
	}

	name := payload.UserName
	if name == "" {
		name = payload.Username
	}
	body, err := email.RenderWelcome(email.WelcomeEmailData{
		AppName:  h.appName,
		Name:     name,
		Username: payload.Username,
		LoginURL: h.loginURL,
	})
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	err = h.sender.Send(email.Message{
		To:       payload.UserEmail,
		Subject:  fmt.Sprintf("Welcome to %s", h.appName),
		HTMLBody: body,
	})
	if err != nil {
		metrics.JobsProcessedTotal.WithLabelValues(TypeEmailWelcome, "failed").Inc()
		return fmt.Errorf("failed to send welcome email: %w", err)
	}

	metrics.JobsProcessedTotal.WithLabelValues(TypeEmailWelcome, "success").Inc()
	h.logger.Info("welcome email sent", "email", payload.UserEmail)
	return nil
}

// AuditTaskHandler persists audit events and runs retention.
type AuditTaskHandler struct {
	repo          audit.Repository
	retentionDays int
	logger        *logger.Logger
}

// NewAuditTaskHandler creates an AuditTaskHandler.
func NewAuditTaskHandler(repo audit.Repository, retentionDays int, log *logger.Logger) *AuditTaskHandler {
	return &AuditTaskHandler{
		repo:          repo,
		retentionDays: retentionDays,
		logger:        log.With("component", "audit_handler"),
	}
}

// HandleAuditEvent writes one audit event to the store.
func (h *AuditTaskHandler) HandleAuditEvent(ctx context.Context, t *asynq.Task) error {
	var e audit.Event
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return fmt.Errorf("failed to unmarshal audit event: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.repo.Create(ctx, &e); err != nil {
		metrics.JobsProcessedTotal.WithLabelValues(TypeAuditEvent, "failed").Inc()
		return fmt.Errorf("failed to persist audit event: %w", err)
	}

	metrics.JobsProcessedTotal.WithLabelValues(TypeAuditEvent, "success").Inc()
	return nil
}

// HandleAuditPurge removes audit events past the retention window.
func (h *AuditTaskHandler) HandleAuditPurge(ctx context.Context, _ *asynq.Task) error {
	if h.retentionDays <= 0 {
		return nil
	}

	deleted, err := h.repo.DeleteOlderThan(ctx, retentionCutoff(h.retentionDays))
	if err != nil {
		metrics.JobsProcessedTotal.WithLabelValues(TypeAuditPurge, "failed").Inc()
		return fmt.Errorf("failed to purge audit events: %w", err)
	}

	metrics.JobsProcessedTotal.WithLabelValues(TypeAuditPurge, "success").Inc()
	if deleted > 0 {
		h.logger.Info("audit retention completed", "deleted", deleted)
	}
	return nil
}
