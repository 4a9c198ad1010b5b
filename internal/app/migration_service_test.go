package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/domain/migration"
	"github.com/connecthub/api/pkg/domain/role"
	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/domain/user"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/password"
	"github.com/connecthub/api/pkg/validator"
)

type migrationEnv struct {
	users      *memUserRepo
	roles      *memRoleRepo
	apps       *memApplicationRepo
	dispatcher *fakeDispatcher
	svc        *MigrationService
}

func newMigrationEnv(t *testing.T, welcomeEmails bool) *migrationEnv {
	t.Helper()

	users := newMemUserRepo()
	dispatcher := &fakeDispatcher{}
	env := &migrationEnv{
		users:      users,
		roles:      newMemRoleRepo(users),
		apps:       newMemApplicationRepo(),
		dispatcher: dispatcher,
	}
	auditSvc := NewAuditService(&memAuditRepo{}, dispatcher, logger.NewNop())
	env.svc = NewMigrationService(
		env.users,
		env.roles,
		env.apps,
		password.New(password.WithCost(4)),
		validator.New(),
		dispatcher,
		auditSvc,
		logger.NewNop(),
		welcomeEmails,
	)
	return env
}

func userRecords(t *testing.T, recs ...migration.UserRecord) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(recs))
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		require.NoError(t, err)
		out = append(out, data)
	}
	return out
}

func testActor() audit.Actor {
	return audit.Actor{ID: shared.NewID(), Email: "admin@example.com"}
}

func TestMigrationService_RunUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("imports valid records in order", func(t *testing.T) {
		env := newMigrationEnv(t, false)

		outcome, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type: migration.TypeUsers,
			Records: userRecords(t,
				migration.UserRecord{Username: "alice", Email: "alice@example.com", FullName: "Alice A"},
				migration.UserRecord{Username: "bob", Email: "bob@example.com", FullName: "Bob B"},
			),
		})
		require.NoError(t, err)

		assert.Equal(t, 2, outcome.TotalRecords)
		assert.Equal(t, 2, outcome.SuccessfulRecords)
		assert.Equal(t, 0, outcome.FailedRecords)
		assert.True(t, outcome.Success())

		u, err := env.users.GetByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", u.Email())
		assert.True(t, u.IsActive())
		assert.NotEmpty(t, u.PasswordHash(), "users without a password get a generated credential")
	})

	t.Run("successes and failures add up to the batch size", func(t *testing.T) {
		env := newMigrationEnv(t, false)

		outcome, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type: migration.TypeUsers,
			Records: userRecords(t,
				migration.UserRecord{Username: "carol", Email: "carol@example.com"},
				migration.UserRecord{Username: "x", Email: "not-an-email"}, // fails validation
				migration.UserRecord{Username: "dave", Email: "dave@example.com"},
			),
		})
		require.NoError(t, err)

		assert.Equal(t, 3, outcome.TotalRecords)
		assert.Equal(t, 2, outcome.SuccessfulRecords)
		assert.Equal(t, 1, outcome.FailedRecords)
		assert.Equal(t, outcome.TotalRecords, outcome.SuccessfulRecords+outcome.FailedRecords)

		require.Len(t, outcome.Errors, 1)
		assert.Equal(t, 1, outcome.Errors[0].Index)

		// Records after the bad one are still applied.
		_, err = env.users.GetByUsername(ctx, "dave")
		assert.NoError(t, err)
	})

	t.Run("malformed record fails without aborting the batch", func(t *testing.T) {
		env := newMigrationEnv(t, false)

		records := userRecords(t, migration.UserRecord{Username: "erin", Email: "erin@example.com"})
		records = append([]json.RawMessage{json.RawMessage(`{"username": 42}`)}, records...)

		outcome, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type:    migration.TypeUsers,
			Records: records,
		})
		require.NoError(t, err)

		assert.Equal(t, 1, outcome.SuccessfulRecords)
		require.Len(t, outcome.Errors, 1)
		assert.Equal(t, 0, outcome.Errors[0].Index)
		assert.Contains(t, outcome.Errors[0].Message, "malformed record")
	})

	t.Run("first record claiming a username wins", func(t *testing.T) {
		env := newMigrationEnv(t, false)

		outcome, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type: migration.TypeUsers,
			Records: userRecords(t,
				migration.UserRecord{Username: "frank", Email: "frank@example.com", FullName: "First"},
				migration.UserRecord{Username: "frank", Email: "frank2@example.com", FullName: "Second"},
				migration.UserRecord{Username: "frank3", Email: "frank@example.com", FullName: "Third"},
			),
		})
		require.NoError(t, err)

		assert.Equal(t, 1, outcome.SuccessfulRecords)
		assert.Equal(t, 2, outcome.FailedRecords)
		require.Len(t, outcome.Errors, 2)
		assert.Equal(t, "duplicate username in batch", outcome.Errors[0].Message)
		assert.Equal(t, "duplicate email in batch", outcome.Errors[1].Message)

		u, err := env.users.GetByUsername(ctx, "frank")
		require.NoError(t, err)
		assert.Equal(t, "First", u.FullName())
	})

	t.Run("existing user fails unless overwrite is set", func(t *testing.T) {
		env := newMigrationEnv(t, false)
		seedUser(t, env.users, "grace", "grace@example.com")

		outcome, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type: migration.TypeUsers,
			Records: userRecords(t,
				migration.UserRecord{Username: "grace", Email: "grace@example.com"},
			),
		})
		require.NoError(t, err)

		assert.Equal(t, 1, outcome.FailedRecords)
		require.Len(t, outcome.Errors, 1)
		assert.Equal(t, "user already exists", outcome.Errors[0].Message)
	})

	t.Run("overwrite updates the existing user in place", func(t *testing.T) {
		env := newMigrationEnv(t, false)
		existing := seedUser(t, env.users, "heidi", "heidi@example.com")

		outcome, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type: migration.TypeUsers,
			Records: userRecords(t,
				migration.UserRecord{Username: "heidi", Email: "heidi@corp.example.com", FullName: "Heidi H"},
			),
			OverwriteExisting: true,
		})
		require.NoError(t, err)

		assert.Equal(t, 1, outcome.SuccessfulRecords)

		u, err := env.users.GetByID(ctx, existing.ID())
		require.NoError(t, err)
		assert.Equal(t, "heidi@corp.example.com", u.Email())
		assert.Equal(t, "Heidi H", u.FullName())
	})

	t.Run("validate only writes nothing and fires no side effects", func(t *testing.T) {
		env := newMigrationEnv(t, true)

		outcome, err := env.svc.Validate(ctx, testActor(), migration.Request{
			Type: migration.TypeUsers,
			Records: userRecords(t,
				migration.UserRecord{Username: "ivan", Email: "ivan@example.com"},
				migration.UserRecord{Username: "y", Email: "bad"},
			),
		})
		require.NoError(t, err)

		assert.Equal(t, 1, outcome.SuccessfulRecords)
		assert.Equal(t, 1, outcome.FailedRecords)

		_, err = env.users.GetByUsername(ctx, "ivan")
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.Empty(t, env.dispatcher.emails)
		assert.Empty(t, env.dispatcher.auditEvents)
	})

	t.Run("dry run flags in-batch duplicates like apply does", func(t *testing.T) {
		env := newMigrationEnv(t, false)

		outcome, err := env.svc.Validate(ctx, testActor(), migration.Request{
			Type: migration.TypeUsers,
			Records: userRecords(t,
				migration.UserRecord{Username: "judy", Email: "judy@example.com"},
				migration.UserRecord{Username: "judy", Email: "judy2@example.com"},
			),
		})
		require.NoError(t, err)

		assert.Equal(t, 1, outcome.SuccessfulRecords)
		require.Len(t, outcome.Errors, 1)
		assert.Equal(t, "duplicate username in batch", outcome.Errors[0].Message)
	})

	t.Run("store failure aborts the batch", func(t *testing.T) {
		env := newMigrationEnv(t, false)
		env.users.existsErr = errors.New("connection refused")

		outcome, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type: migration.TypeUsers,
			Records: userRecords(t,
				migration.UserRecord{Username: "kate", Email: "kate@example.com"},
			),
		})
		require.Error(t, err)
		assert.Nil(t, outcome)
		assert.Empty(t, env.dispatcher.auditEvents)
	})

	t.Run("welcome emails go to created users only", func(t *testing.T) {
		env := newMigrationEnv(t, true)
		seedUser(t, env.users, "leo", "leo@example.com")

		_, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type: migration.TypeUsers,
			Records: userRecords(t,
				migration.UserRecord{Username: "mallory", Email: "mallory@example.com"},
				migration.UserRecord{Username: "leo", Email: "leo@example.com", FullName: "Leo L"},
			),
			OverwriteExisting: true,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"mallory@example.com"}, env.dispatcher.emails,
			"overwritten users do not get a welcome email")
	})

	t.Run("records one audit event per batch", func(t *testing.T) {
		env := newMigrationEnv(t, false)

		_, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type: migration.TypeUsers,
			Records: userRecords(t,
				migration.UserRecord{Username: "nina", Email: "nina@example.com"},
				migration.UserRecord{Username: "oscar", Email: "oscar@example.com"},
				migration.UserRecord{Username: "z", Email: "bad"},
			),
		})
		require.NoError(t, err)

		require.Len(t, env.dispatcher.auditEvents, 1)
		event := env.dispatcher.auditEvents[0]
		assert.Equal(t, "migration.import", event.Action)
		assert.Equal(t, 3, event.Metadata["total_records"])
		assert.Equal(t, 2, event.Metadata["successful_records"])
		assert.Equal(t, 1, event.Metadata["failed_records"])
	})

	t.Run("rejects unknown migration type", func(t *testing.T) {
		env := newMigrationEnv(t, false)

		_, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type:    migration.Type("groups"),
			Records: []json.RawMessage{json.RawMessage(`{}`)},
		})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func TestMigrationService_RunRoles(t *testing.T) {
	ctx := context.Background()

	rawRole := func(name, description string) json.RawMessage {
		data, _ := json.Marshal(migration.RoleRecord{Name: name, Description: description})
		return data
	}

	t.Run("creates roles and skips existing ones", func(t *testing.T) {
		env := newMigrationEnv(t, false)
		seedRole(t, env.roles, "auditor")

		outcome, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type: migration.TypeRoles,
			Records: []json.RawMessage{
				rawRole("operator", "Runs day-to-day operations"),
				rawRole("auditor", ""),
			},
		})
		require.NoError(t, err)

		assert.Equal(t, 1, outcome.SuccessfulRecords)
		require.Len(t, outcome.Errors, 1)
		assert.Equal(t, "role already exists", outcome.Errors[0].Message)

		_, err = env.roles.GetByName(ctx, "operator")
		assert.NoError(t, err)
	})

	t.Run("overwrite updates the description", func(t *testing.T) {
		env := newMigrationEnv(t, false)
		seedRole(t, env.roles, "auditor")

		outcome, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type:              migration.TypeRoles,
			Records:           []json.RawMessage{rawRole("auditor", "Read-only audit access")},
			OverwriteExisting: true,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.SuccessfulRecords)

		r, err := env.roles.GetByName(ctx, "auditor")
		require.NoError(t, err)
		assert.Equal(t, "Read-only audit access", r.Description())
	})

	t.Run("duplicate role name in batch fails the later record", func(t *testing.T) {
		env := newMigrationEnv(t, false)

		outcome, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type: migration.TypeRoles,
			Records: []json.RawMessage{
				rawRole("viewer", "first"),
				rawRole("viewer", "second"),
			},
		})
		require.NoError(t, err)

		assert.Equal(t, 1, outcome.SuccessfulRecords)
		require.Len(t, outcome.Errors, 1)
		assert.Equal(t, "duplicate role name in batch", outcome.Errors[0].Message)

		r, err := env.roles.GetByName(ctx, "viewer")
		require.NoError(t, err)
		assert.Equal(t, "first", r.Description())
	})
}

func TestMigrationService_RunApplications(t *testing.T) {
	ctx := context.Background()

	rawApp := func(rec migration.ApplicationRecord) json.RawMessage {
		data, _ := json.Marshal(rec)
		return data
	}

	t.Run("creates applications", func(t *testing.T) {
		env := newMigrationEnv(t, false)

		outcome, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type: migration.TypeApplications,
			Records: []json.RawMessage{
				rawApp(migration.ApplicationRecord{
					Name:       "Billing Portal",
					URL:        "https://billing.example.com",
					OwnerEmail: "billing@example.com",
				}),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.SuccessfulRecords)

		a, err := env.apps.GetByName(ctx, "Billing Portal")
		require.NoError(t, err)
		assert.Equal(t, "https://billing.example.com", a.URL())
	})

	t.Run("rejects invalid url", func(t *testing.T) {
		env := newMigrationEnv(t, false)

		outcome, err := env.svc.Run(ctx, testActor(), migration.Request{
			Type: migration.TypeApplications,
			Records: []json.RawMessage{
				rawApp(migration.ApplicationRecord{Name: "Broken", URL: "not a url"}),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.FailedRecords)
	})
}

func TestMigrationService_Template(t *testing.T) {
	env := newMigrationEnv(t, false)

	t.Run("returns a template per type", func(t *testing.T) {
		for _, mt := range migration.AllTypes() {
			tpl, err := env.svc.Template(string(mt))
			require.NoError(t, err, "type %s", mt)
			assert.Equal(t, string(mt), tpl["type"])
			assert.NotEmpty(t, tpl["records"])
		}
	})

	t.Run("rejects unknown type", func(t *testing.T) {
		_, err := env.svc.Template("widgets")
		assert.ErrorIs(t, err, shared.ErrValidation)
	})
}

func seedUser(t *testing.T, repo *memUserRepo, username, email string) *user.User {
	t.Helper()
	u, err := user.New(username, email, "", "$2a$04$seedhashseedhashseedha")
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func seedRole(t *testing.T, repo *memRoleRepo, name string) *role.Role {
	t.Helper()
	r, err := role.New(name, "")
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), r))
	return r
}
