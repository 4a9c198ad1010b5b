package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/connecthub/api/internal/metrics"
	"github.com/connecthub/api/pkg/domain/application"
	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/domain/migration"
	"github.com/connecthub/api/pkg/domain/role"
	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/domain/user"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/password"
	"github.com/connecthub/api/pkg/validator"
)

// MigrationService applies bulk imports of users, roles and
// applications. Records are processed in input order; each record is
// validated and persisted independently, so one bad record never aborts
// the batch. Only an infrastructure failure (store unavailable) stops
// the remaining work and surfaces as a top-level error.
type MigrationService struct {
	users         user.Repository
	roles         role.Repository
	applications  application.Repository
	hasher        *password.Hasher
	validate      *validator.Validator
	dispatcher    Dispatcher
	audit         *AuditService
	logger        *logger.Logger
	welcomeEmails bool
}

// NewMigrationService creates a MigrationService. welcomeEmails enables
// fire-and-forget welcome mail for users created by an import.
func NewMigrationService(
	users user.Repository,
	roles role.Repository,
	applications application.Repository,
	hasher *password.Hasher,
	validate *validator.Validator,
	dispatcher Dispatcher,
	auditSvc *AuditService,
	log *logger.Logger,
	welcomeEmails bool,
) *MigrationService {
	return &MigrationService{
		users:         users,
		roles:         roles,
		applications:  applications,
		hasher:        hasher,
		validate:      validate,
		dispatcher:    dispatcher,
		audit:         auditSvc,
		logger:        log.With("service", "migration"),
		welcomeEmails: welcomeEmails,
	}
}

// Validate dry-runs an import: every per-record check runs, nothing is
// written and no side effects fire.
func (s *MigrationService) Validate(ctx context.Context, actor audit.Actor, req migration.Request) (*migration.Outcome, error) {
	req.ValidateOnly = true
	return s.Run(ctx, actor, req)
}

// Run executes an import request. The returned outcome covers every
// record: successes plus failures always add up to the batch size.
func (s *MigrationService) Run(ctx context.Context, actor audit.Actor, req migration.Request) (*migration.Outcome, error) {
	if _, err := migration.ParseType(string(req.Type)); err != nil {
		return nil, err
	}

	mode := "apply"
	if req.ValidateOnly {
		mode = "validate"
	}
	metrics.ImportBatchesTotal.WithLabelValues(string(req.Type), mode).Inc()
	start := time.Now()

	var (
		outcome *migration.Outcome
		created []*user.User
		err     error
	)
	switch req.Type {
	case migration.TypeUsers:
		outcome, created, err = s.runUsers(ctx, req)
	case migration.TypeRoles:
		outcome, err = s.runRoles(ctx, req)
	case migration.TypeApplications:
		outcome, err = s.runApplications(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	metrics.ImportBatchDuration.WithLabelValues(string(req.Type)).Observe(time.Since(start).Seconds())
	metrics.ImportRecordsTotal.WithLabelValues(string(req.Type), "success").Add(float64(outcome.SuccessfulRecords))
	metrics.ImportRecordsTotal.WithLabelValues(string(req.Type), "failed").Add(float64(outcome.FailedRecords))

	s.logger.Info("import batch completed",
		"type", string(req.Type),
		"mode", mode,
		"total", outcome.TotalRecords,
		"succeeded", outcome.SuccessfulRecords,
		"failed", outcome.FailedRecords,
	)

	if !req.ValidateOnly {
		// One audit event per batch, not per record.
		s.audit.Record(ctx, audit.NewSuccessEvent(actor, "migration.import", "migration", string(req.Type)).
			WithMetadata(map[string]any{
				"type":               string(req.Type),
				"total_records":      outcome.TotalRecords,
				"successful_records": outcome.SuccessfulRecords,
				"failed_records":     outcome.FailedRecords,
				"overwrite_existing": req.OverwriteExisting,
			}))

		if s.welcomeEmails {
			s.sendWelcomeEmails(ctx, created)
		}
	}

	return outcome, nil
}

// runUsers imports user records. Returns the users created so welcome
// emails can be dispatched after the batch.
func (s *MigrationService) runUsers(ctx context.Context, req migration.Request) (*migration.Outcome, []*user.User, error) {
	outcome := migration.NewOutcome(len(req.Records))
	created := make([]*user.User, 0)

	// Unique keys claimed by earlier records in this batch. The store
	// only sees rows once they are written, so a dry run needs its own
	// duplicate tracking to mirror apply behavior.
	seenUsernames := make(map[string]struct{})
	seenEmails := make(map[string]struct{})

	for i, raw := range req.Records {
		var rec migration.UserRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			outcome.RecordFailure(i, recordIdentifier(raw, "username"), "malformed record: "+err.Error())
			continue
		}
		if err := s.validate.Validate(rec); err != nil {
			outcome.RecordFailure(i, rec.Username, err.Error())
			continue
		}

		username := strings.ToLower(strings.TrimSpace(rec.Username))
		email := strings.ToLower(strings.TrimSpace(rec.Email))

		if _, dup := seenUsernames[username]; dup && !req.OverwriteExisting {
			outcome.RecordFailure(i, rec.Username, "duplicate username in batch")
			continue
		}
		if _, dup := seenEmails[email]; dup && !req.OverwriteExisting {
			outcome.RecordFailure(i, rec.Username, "duplicate email in batch")
			continue
		}

		usernameExists, err := s.users.ExistsByUsername(ctx, username)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check username: %w", err)
		}
		emailExists, err := s.users.ExistsByEmail(ctx, email)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to check email: %w", err)
		}

		if (usernameExists || emailExists) && !req.OverwriteExisting {
			outcome.RecordFailure(i, rec.Username, "user already exists")
			continue
		}

		seenUsernames[username] = struct{}{}
		seenEmails[email] = struct{}{}

		if req.ValidateOnly {
			outcome.RecordSuccess()
			continue
		}

		if usernameExists {
			if err := s.overwriteUser(ctx, username, rec); err != nil {
				if aborted, recErr := classifyRecordError(err); aborted {
					return nil, nil, recErr
				} else {
					outcome.RecordFailure(i, rec.Username, recErr.Error())
					continue
				}
			}
			outcome.RecordSuccess()
			continue
		}

		u, err := s.createUser(ctx, rec)
		if err != nil {
			if aborted, recErr := classifyRecordError(err); aborted {
				return nil, nil, recErr
			} else {
				outcome.RecordFailure(i, rec.Username, recErr.Error())
				continue
			}
		}
		created = append(created, u)
		outcome.RecordSuccess()
	}

	return outcome, created, nil
}

func (s *MigrationService) createUser(ctx context.Context, rec migration.UserRecord) (*user.User, error) {
	pw := rec.Password
	if pw == "" {
		// Imported users without a password get a random credential
		// and reset it through the welcome email.
		random, err := password.GenerateRandom(24)
		if err != nil {
			return nil, fmt.Errorf("failed to generate password: %w", err)
		}
		pw = random
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u, err := user.New(rec.Username, rec.Email, rec.FullName, hash)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *MigrationService) overwriteUser(ctx context.Context, username string, rec migration.UserRecord) error {
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if err := u.UpdateProfile(rec.Email, rec.FullName); err != nil {
		return err
	}
	if rec.Password != "" {
		hash, err := s.hasher.Hash(rec.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		u.SetPasswordHash(hash)
	}
	return s.users.Update(ctx, u)
}

// runRoles imports role records.
func (s *MigrationService) runRoles(ctx context.Context, req migration.Request) (*migration.Outcome, error) {
	outcome := migration.NewOutcome(len(req.Records))
	seen := make(map[string]struct{})

	for i, raw := range req.Records {
		var rec migration.RoleRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			outcome.RecordFailure(i, recordIdentifier(raw, "name"), "malformed record: "+err.Error())
			continue
		}
		if err := s.validate.Validate(rec); err != nil {
			outcome.RecordFailure(i, rec.Name, err.Error())
			continue
		}

		name := strings.ToLower(strings.TrimSpace(rec.Name))
		if _, dup := seen[name]; dup && !req.OverwriteExisting {
			outcome.RecordFailure(i, rec.Name, "duplicate role name in batch")
			continue
		}

		exists, err := s.roles.ExistsByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check role name: %w", err)
		}
		if exists && !req.OverwriteExisting {
			outcome.RecordFailure(i, rec.Name, "role already exists")
			continue
		}

		seen[name] = struct{}{}

		if req.ValidateOnly {
			outcome.RecordSuccess()
			continue
		}

		if exists {
			r, err := s.roles.GetByName(ctx, name)
			if err == nil {
				r.UpdateDescription(rec.Description)
				err = s.roles.Update(ctx, r)
			}
			if err != nil {
				if aborted, recErr := classifyRecordError(err); aborted {
					return nil, recErr
				} else {
					outcome.RecordFailure(i, rec.Name, recErr.Error())
					continue
				}
			}
			outcome.RecordSuccess()
			continue
		}

		r, err := role.New(rec.Name, rec.Description)
		if err == nil {
			err = s.roles.Create(ctx, r)
		}
		if err != nil {
			if aborted, recErr := classifyRecordError(err); aborted {
				return nil, recErr
			} else {
				outcome.RecordFailure(i, rec.Name, recErr.Error())
				continue
			}
		}
		outcome.RecordSuccess()
	}

	return outcome, nil
}

// runApplications imports application records.
func (s *MigrationService) runApplications(ctx context.Context, req migration.Request) (*migration.Outcome, error) {
	outcome := migration.NewOutcome(len(req.Records))
	seen := make(map[string]struct{})

	for i, raw := range req.Records {
		var rec migration.ApplicationRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			outcome.RecordFailure(i, recordIdentifier(raw, "name"), "malformed record: "+err.Error())
			continue
		}
		if err := s.validate.Validate(rec); err != nil {
			outcome.RecordFailure(i, rec.Name, err.Error())
			continue
		}

		name := strings.TrimSpace(rec.Name)
		if _, dup := seen[name]; dup && !req.OverwriteExisting {
			outcome.RecordFailure(i, rec.Name, "duplicate application name in batch")
			continue
		}

		exists, err := s.applications.ExistsByName(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check application name: %w", err)
		}
		if exists && !req.OverwriteExisting {
			outcome.RecordFailure(i, rec.Name, "application already exists")
			continue
		}

		seen[name] = struct{}{}

		if req.ValidateOnly {
			outcome.RecordSuccess()
			continue
		}

		if exists {
			a, err := s.applications.GetByName(ctx, name)
			if err == nil {
				err = a.Update(rec.Description, rec.URL, rec.OwnerEmail)
			}
			if err == nil {
				err = s.applications.Update(ctx, a)
			}
			if err != nil {
				if aborted, recErr := classifyRecordError(err); aborted {
					return nil, recErr
				} else {
					outcome.RecordFailure(i, rec.Name, recErr.Error())
					continue
				}
			}
			outcome.RecordSuccess()
			continue
		}

		a, err := application.New(rec.Name, rec.Description, rec.URL, rec.OwnerEmail)
		if err == nil {
			err = s.applications.Create(ctx, a)
		}
		if err != nil {
			if aborted, recErr := classifyRecordError(err); aborted {
				return nil, recErr
			} else {
				outcome.RecordFailure(i, rec.Name, recErr.Error())
				continue
			}
		}
		outcome.RecordSuccess()
	}

	return outcome, nil
}

// Template returns an example request body for an import type.
func (s *MigrationService) Template(migrationType string) (map[string]any, error) {
	t, err := migration.ParseType(migrationType)
	if err != nil {
		return nil, err
	}
	return migration.Template(t)
}

func (s *MigrationService) sendWelcomeEmails(ctx context.Context, created []*user.User) {
	for _, u := range created {
		if err := s.dispatcher.EnqueueWelcomeEmail(ctx, u.Email(), u.FullName(), u.Username()); err != nil {
			s.logger.Warn("failed to enqueue welcome email",
				"user_id", u.ID().String(), "error", err)
		}
	}
}

// classifyRecordError splits a per-record failure from an
// infrastructure failure. Validation, conflict and not-found errors
// belong to the record; anything else aborts the batch.
func classifyRecordError(err error) (abort bool, out error) {
	if shared.IsValidation(err) || shared.IsConflict(err) || shared.IsNotFound(err) {
		return false, err
	}
	return true, err
}

// recordIdentifier pulls a best-effort identifier out of a record that
// failed to decode fully.
func recordIdentifier(raw json.RawMessage, field string) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	if v, ok := m[field].(string); ok {
		return v
	}
	return ""
}
