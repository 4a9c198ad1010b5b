// Package connection defines managed database connections.
package connection

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/connecthub/api/pkg/domain/shared"
)

// Driver identifies the database engine behind a connection.
type Driver string

const (
	DriverPostgres  Driver = "postgres"
	DriverMySQL     Driver = "mysql"
	DriverSQLServer Driver = "sqlserver"
	DriverOracle    Driver = "oracle"
)

// IsValid reports whether the driver is supported.
func (d Driver) IsValid() bool {
	switch d {
	case DriverPostgres, DriverMySQL, DriverSQLServer, DriverOracle:
		return true
	default:
		return false
	}
}

// TestStatus is the result of the most recent connectivity test.
type TestStatus string

const (
	TestStatusUnknown TestStatus = "unknown"
	TestStatusSuccess TestStatus = "success"
	TestStatusFailed  TestStatus = "failed"
	TestStatusSkipped TestStatus = "skipped"
)

// scheduleParser accepts standard five-field cron expressions.
var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ValidateSchedule checks a cron expression for the test schedule.
// An empty schedule disables scheduled testing.
func ValidateSchedule(expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := scheduleParser.Parse(expr); err != nil {
		return fmt.Errorf("%w: invalid cron expression: %v", shared.ErrValidation, err)
	}
	return nil
}

// Connection is a managed database connection. Name is unique. The
// secret reference points at an external credential store entry; raw
// passwords are never persisted here.
type Connection struct {
	id           shared.ID
	name         string
	driver       Driver
	host         string
	port         int
	database     string
	username     string
	secretRef    string
	testSchedule string
	lastStatus   TestStatus
	lastTestedAt *time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

// New creates a connection definition.
func New(name string, driver Driver, host string, port int, database, username, secretRef, testSchedule string) (*Connection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: connection name is required", shared.ErrValidation)
	}
	if !driver.IsValid() {
		return nil, fmt.Errorf("%w: unsupported driver %q", shared.ErrValidation, driver)
	}
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("%w: host is required", shared.ErrValidation)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: invalid port %d", shared.ErrValidation, port)
	}
	if err := ValidateSchedule(testSchedule); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Connection{
		id:           shared.NewID(),
		name:         name,
		driver:       driver,
		host:         strings.TrimSpace(host),
		port:         port,
		database:     strings.TrimSpace(database),
		username:     strings.TrimSpace(username),
		secretRef:    strings.TrimSpace(secretRef),
		testSchedule: testSchedule,
		lastStatus:   TestStatusUnknown,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// Reconstitute rebuilds a connection from stored state.
func Reconstitute(id shared.ID, name string, driver Driver, host string, port int, database, username, secretRef, testSchedule string, lastStatus TestStatus, lastTestedAt *time.Time, createdAt, updatedAt time.Time) *Connection {
	return &Connection{
		id:           id,
		name:         name,
		driver:       driver,
		host:         host,
		port:         port,
		database:     database,
		username:     username,
		secretRef:    secretRef,
		testSchedule: testSchedule,
		lastStatus:   lastStatus,
		lastTestedAt: lastTestedAt,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (c *Connection) ID() shared.ID            { return c.id }
func (c *Connection) Name() string             { return c.name }
func (c *Connection) Driver() Driver           { return c.driver }
func (c *Connection) Host() string             { return c.host }
func (c *Connection) Port() int                { return c.port }
func (c *Connection) Database() string         { return c.database }
func (c *Connection) Username() string         { return c.username }
func (c *Connection) SecretRef() string        { return c.secretRef }
func (c *Connection) TestSchedule() string     { return c.testSchedule }
func (c *Connection) LastStatus() TestStatus   { return c.lastStatus }
func (c *Connection) LastTestedAt() *time.Time { return c.lastTestedAt }
func (c *Connection) CreatedAt() time.Time     { return c.createdAt }
func (c *Connection) UpdatedAt() time.Time     { return c.updatedAt }

// DSN builds the driver-specific connection string with the supplied
// password. The password comes from the credential store at test time.
func (c *Connection) DSN(password string) string {
	switch c.driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=prefer",
			c.host, c.port, c.username, password, c.database)
	case DriverMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", c.username, password, c.host, c.port, c.database)
	case DriverSQLServer:
		return fmt.Sprintf("sqlserver://%s:%s@%s:%d?database=%s", c.username, password, c.host, c.port, c.database)
	case DriverOracle:
		return fmt.Sprintf("oracle://%s:%s@%s:%d/%s", c.username, password, c.host, c.port, c.database)
	default:
		return ""
	}
}

// Update changes the mutable fields.
func (c *Connection) Update(host string, port int, database, username, secretRef, testSchedule string) error {
	if strings.TrimSpace(host) == "" {
		return fmt.Errorf("%w: host is required", shared.ErrValidation)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: invalid port %d", shared.ErrValidation, port)
	}
	if err := ValidateSchedule(testSchedule); err != nil {
		return err
	}
	c.host = strings.TrimSpace(host)
	c.port = port
	c.database = strings.TrimSpace(database)
	c.username = strings.TrimSpace(username)
	c.secretRef = strings.TrimSpace(secretRef)
	c.testSchedule = testSchedule
	c.updatedAt = time.Now().UTC()
	return nil
}

// RecordTestResult stores the outcome of a connectivity test.
func (c *Connection) RecordTestResult(status TestStatus, at time.Time) {
	c.lastStatus = status
	at = at.UTC()
	c.lastTestedAt = &at
	c.updatedAt = time.Now().UTC()
}
