package jobs

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/connecthub/api/internal/metrics"
	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/logger"
)

// Client enqueues background jobs.
type Client struct {
	client *asynq.Client
	logger *logger.Logger
}

// ClientConfig contains configuration for the job client.
type ClientConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// NewClient creates a job client.
func NewClient(cfg ClientConfig, log *logger.Logger) *Client {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	return &Client{
		client: client,
		logger: log.With("component", "job_client"),
	}
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueWelcomeEmail enqueues a welcome email job.
func (c *Client) EnqueueWelcomeEmail(ctx context.Context, email, fullName, username string) error {
	task, err := NewWelcomeEmailTask(WelcomeEmailPayload{
		UserEmail: email,
		UserName:  fullName,
		Username:  username,
	})
	if err != nil {
		return err
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue welcome email: %w", err)
	}
	metrics.JobsEnqueuedTotal.WithLabelValues(TypeEmailWelcome).Inc()

	c.logger.Debug("welcome email queued", "task_id", info.ID, "email", email)
	return nil
}

// EnqueueAuditEvent enqueues persistence of one audit event.
func (c *Client) EnqueueAuditEvent(ctx context.Context, e *audit.Event) error {
	task, err := NewAuditEventTask(e)
	if err != nil {
		return err
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("failed to enqueue audit event: %w", err)
	}
	metrics.JobsEnqueuedTotal.WithLabelValues(TypeAuditEvent).Inc()

	c.logger.Debug("audit event queued", "task_id", info.ID, "action", e.Action)
	return nil
}

// EnqueueAuditPurge enqueues an audit retention run.
func (c *Client) EnqueueAuditPurge(ctx context.Context) error {
	info, err := c.client.EnqueueContext(ctx, NewAuditPurgeTask())
	if err != nil {
		return fmt.Errorf("failed to enqueue audit purge: %w", err)
	}
	metrics.JobsEnqueuedTotal.WithLabelValues(TypeAuditPurge).Inc()

	c.logger.Debug("audit purge queued", "task_id", info.ID)
	return nil
}
