package app

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/connecthub/api/internal/metrics"
	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/domain/connection"
	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/pagination"
)

// ConnectionTester probes a managed database connection.
type ConnectionTester interface {
	Test(ctx context.Context, c *connection.Connection) error
}

// TCPTester verifies reachability of the database endpoint. Credential
// checks belong to the driver-specific tooling; reachability is what
// the scheduled health probe cares about.
type TCPTester struct {
	Timeout time.Duration
}

// Test dials the connection's host and port.
func (t *TCPTester) Test(ctx context.Context, c *connection.Connection) error {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", c.Host(), c.Port()))
	if err != nil {
		return err
	}
	return conn.Close()
}

// TestReport is the outcome of testing one connection.
type TestReport struct {
	ID      string                `json:"id"`
	Name    string                `json:"name"`
	Status  connection.TestStatus `json:"status"`
	Message string                `json:"message,omitempty"`
}

// ConnectionService handles managed database connections.
type ConnectionService struct {
	repo   connection.Repository
	tester ConnectionTester
	audit  *AuditService
	logger *logger.Logger
}

// NewConnectionService creates a ConnectionService.
func NewConnectionService(repo connection.Repository, tester ConnectionTester, auditSvc *AuditService, log *logger.Logger) *ConnectionService {
	return &ConnectionService{
		repo:   repo,
		tester: tester,
		audit:  auditSvc,
		logger: log.With("service", "connection"),
	}
}

// CreateConnectionInput is the input for creating a connection.
type CreateConnectionInput struct {
	Name         string `json:"name" validate:"required,max=128"`
	Driver       string `json:"driver" validate:"required,db_driver"`
	Host         string `json:"host" validate:"required"`
	Port         int    `json:"port" validate:"required,min=1,max=65535"`
	Database     string `json:"database" validate:"max=128"`
	Username     string `json:"username" validate:"max=128"`
	SecretRef    string `json:"secret_ref" validate:"max=256"`
	TestSchedule string `json:"test_schedule" validate:"omitempty,cron"`
}

// Create creates a connection definition.
func (s *ConnectionService) Create(ctx context.Context, actor audit.Actor, input CreateConnectionInput) (*connection.Connection, error) {
	c, err := connection.New(input.Name, connection.Driver(input.Driver), input.Host, input.Port,
		input.Database, input.Username, input.SecretRef, input.TestSchedule)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("connection created", "connection_id", c.ID().String(), "name", c.Name())
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "connection.create", "connection", c.ID().String()).
		WithResourceName(c.Name()))
	return c, nil
}

// Get retrieves a connection by id.
func (s *ConnectionService) Get(ctx context.Context, id string) (*connection.Connection, error) {
	parsedID, err := shared.ParseID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id format", shared.ErrValidation)
	}
	return s.repo.GetByID(ctx, parsedID)
}

// List returns connections matching the filter.
func (s *ConnectionService) List(ctx context.Context, filter connection.Filter) (pagination.Result[*connection.Connection], error) {
	conns, err := s.repo.List(ctx, filter)
	if err != nil {
		return pagination.Result[*connection.Connection]{}, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return pagination.Result[*connection.Connection]{}, err
	}
	return pagination.NewResult(conns, total, filter.Pagination), nil
}

// UpdateConnectionInput is the input for updating a connection.
type UpdateConnectionInput struct {
	Host         *string `json:"host"`
	Port         *int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Database     *string `json:"database" validate:"omitempty,max=128"`
	Username     *string `json:"username" validate:"omitempty,max=128"`
	SecretRef    *string `json:"secret_ref" validate:"omitempty,max=256"`
	TestSchedule *string `json:"test_schedule" validate:"omitempty,cron"`
}

// Update changes a connection's mutable fields.
func (s *ConnectionService) Update(ctx context.Context, actor audit.Actor, id string, input UpdateConnectionInput) (*connection.Connection, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	host := c.Host()
	if input.Host != nil {
		host = *input.Host
	}
	port := c.Port()
	if input.Port != nil {
		port = *input.Port
	}
	database := c.Database()
	if input.Database != nil {
		database = *input.Database
	}
	username := c.Username()
	if input.Username != nil {
		username = *input.Username
	}
	secretRef := c.SecretRef()
	if input.SecretRef != nil {
		secretRef = *input.SecretRef
	}
	schedule := c.TestSchedule()
	if input.TestSchedule != nil {
		schedule = *input.TestSchedule
	}

	if err := c.Update(host, port, database, username, secretRef, schedule); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("connection updated", "connection_id", c.ID().String())
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "connection.update", "connection", c.ID().String()).
		WithResourceName(c.Name()))
	return c, nil
}

// Delete removes a connection.
func (s *ConnectionService) Delete(ctx context.Context, actor audit.Actor, id string) error {
	parsedID, err := shared.ParseID(id)
	if err != nil {
		return fmt.Errorf("%w: invalid id format", shared.ErrValidation)
	}

	if err := s.repo.Delete(ctx, parsedID); err != nil {
		return err
	}

	s.logger.Info("connection deleted", "connection_id", id)
	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "connection.delete", "connection", id))
	return nil
}

// Test probes one connection and persists the result.
func (s *ConnectionService) Test(ctx context.Context, actor audit.Actor, id string) (*TestReport, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	report := s.testOne(ctx, c)

	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "connection.test", "connection", c.ID().String()).
		WithResourceName(c.Name()).
		WithMessage(string(report.Status)))
	return report, nil
}

// TestAll probes every connection. Connections without a credential
// reference are marked skipped. Each connection's result is
// independent; one failure never stops the sweep.
func (s *ConnectionService) TestAll(ctx context.Context, actor audit.Actor) ([]*TestReport, error) {
	conns, err := s.repo.List(ctx, connection.Filter{
		Pagination: pagination.New(1, 100),
	})
	if err != nil {
		return nil, err
	}

	reports := make([]*TestReport, 0, len(conns))
	for _, c := range conns {
		reports = append(reports, s.testOne(ctx, c))
	}

	s.audit.Record(ctx, audit.NewSuccessEvent(actor, "connection.test_all", "connection", "").
		WithMetadata(map[string]any{"tested": len(reports)}))
	return reports, nil
}

func (s *ConnectionService) testOne(ctx context.Context, c *connection.Connection) *TestReport {
	report := &TestReport{ID: c.ID().String(), Name: c.Name()}

	status := connection.TestStatusSuccess
	if c.SecretRef() == "" {
		status = connection.TestStatusSkipped
		report.Message = "no credential reference configured"
	} else if err := s.tester.Test(ctx, c); err != nil {
		status = connection.TestStatusFailed
		report.Message = err.Error()
		s.logger.Warn("connection test failed",
			"connection_id", c.ID().String(), "name", c.Name(), "error", err)
	}
	report.Status = status
	metrics.ConnectionTestsTotal.WithLabelValues(string(c.Driver()), string(status)).Inc()

	c.RecordTestResult(status, time.Now())
	if err := s.repo.UpdateTestResult(ctx, c); err != nil {
		s.logger.Warn("failed to persist connection test result",
			"connection_id", c.ID().String(), "error", err)
	}
	return report
}
