package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/connecthub/api/pkg/logger"
)

// WorkerConfig holds the configuration for the job worker.
type WorkerConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Concurrency   int
}

// Worker processes background jobs.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *logger.Logger
}

// NewWorker creates a background job worker with all handlers wired.
func NewWorker(cfg WorkerConfig, emailHandler *EmailTaskHandler, auditHandler *AuditTaskHandler, log *logger.Logger) *Worker {
	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				"default":     10,
				"audit":       5,
				"email":       5,
				"maintenance": 2,
			},
		},
	)

	mux := asynq.NewServeMux()
	if emailHandler != nil {
		mux.HandleFunc(TypeEmailWelcome, emailHandler.HandleWelcomeEmail)
	}
	mux.HandleFunc(TypeAuditEvent, auditHandler.HandleAuditEvent)
	mux.HandleFunc(TypeAuditPurge, auditHandler.HandleAuditPurge)

	return &Worker{
		server: server,
		mux:    mux,
		logger: log.With("component", "worker"),
	}
}

// Start starts the worker.
func (w *Worker) Start() error {
	w.logger.Info("starting job worker")
	return w.server.Start(w.mux)
}

// Stop stops the worker gracefully.
func (w *Worker) Stop() {
	w.logger.Info("stopping job worker")
	w.server.Shutdown()
}

// Run runs the worker until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Start(w.mux)
	}()

	select {
	case <-ctx.Done():
		w.Stop()
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("worker error: %w", err)
		}
		return nil
	}
}

// NewScheduler creates the periodic task scheduler. It currently owns
// the nightly audit retention run.
func NewScheduler(cfg WorkerConfig, log *logger.Logger) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		},
		&asynq.SchedulerOpts{},
	)

	if _, err := scheduler.Register("0 3 * * *", NewAuditPurgeTask()); err != nil {
		return nil, fmt.Errorf("failed to register audit purge schedule: %w", err)
	}

	log.Info("job scheduler configured", "audit_purge", "0 3 * * *")
	return scheduler, nil
}

func retentionCutoff(retentionDays int) time.Time {
	return time.Now().UTC().AddDate(0, 0, -retentionDays)
}
