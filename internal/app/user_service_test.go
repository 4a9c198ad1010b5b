package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/domain/user"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/password"
)

type userEnv struct {
	repo       *memUserRepo
	dispatcher *fakeDispatcher
	svc        *UserService
}

func newUserEnv(t *testing.T) *userEnv {
	t.Helper()

	dispatcher := &fakeDispatcher{}
	env := &userEnv{
		repo:       newMemUserRepo(),
		dispatcher: dispatcher,
	}
	auditSvc := NewAuditService(&memAuditRepo{}, dispatcher, logger.NewNop())
	env.svc = NewUserService(env.repo, password.New(password.WithCost(4)), auditSvc, logger.NewNop())
	return env
}

func TestUserService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active user with a hashed credential", func(t *testing.T) {
		env := newUserEnv(t)

		u, err := env.svc.Create(ctx, testActor(), CreateUserInput{
			Username: "Alice",
			Email:    "Alice@Example.com",
			FullName: "Alice A",
			Password: "Str0ng!Passw0rd",
		})
		require.NoError(t, err)

		assert.Equal(t, "alice", u.Username())
		assert.Equal(t, "alice@example.com", u.Email())
		assert.True(t, u.IsActive())
		assert.NotEqual(t, "Str0ng!Passw0rd", u.PasswordHash())

		require.Len(t, env.dispatcher.auditEvents, 1)
		assert.Equal(t, "user.create", env.dispatcher.auditEvents[0].Action)
	})

	t.Run("rejects a password failing policy", func(t *testing.T) {
		env := newUserEnv(t)

		_, err := env.svc.Create(ctx, testActor(), CreateUserInput{
			Username: "bob",
			Email:    "bob@example.com",
			Password: "short",
		})
		require.Error(t, err)
		assert.Empty(t, env.dispatcher.auditEvents)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		env := newUserEnv(t)
		seedUser(t, env.repo, "carol", "carol@example.com")

		_, err := env.svc.Create(ctx, testActor(), CreateUserInput{
			Username: "carol",
			Email:    "other@example.com",
			Password: "Str0ng!Passw0rd",
		})
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})
}

func TestUserService_SuspendActivate(t *testing.T) {
	ctx := context.Background()

	env := newUserEnv(t)
	u := seedUser(t, env.repo, "dave", "dave@example.com")

	suspended, err := env.svc.Suspend(ctx, testActor(), u.ID().String())
	require.NoError(t, err)
	assert.False(t, suspended.IsActive())

	restored, err := env.svc.Activate(ctx, testActor(), u.ID().String())
	require.NoError(t, err)
	assert.True(t, restored.IsActive())
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the user", func(t *testing.T) {
		env := newUserEnv(t)
		u := seedUser(t, env.repo, "erin", "erin@example.com")

		require.NoError(t, env.svc.Delete(ctx, testActor(), u.ID().String()))

		_, err := env.repo.GetByID(ctx, u.ID())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("callers cannot delete themselves", func(t *testing.T) {
		env := newUserEnv(t)
		u := seedUser(t, env.repo, "frank", "frank@example.com")
		actor := audit.Actor{ID: u.ID(), Email: "frank@example.com"}

		err := env.svc.Delete(ctx, actor, u.ID().String())
		require.ErrorIs(t, err, shared.ErrValidation)
		assert.Contains(t, err.Error(), "cannot delete your own account")

		_, err = env.repo.GetByID(ctx, u.ID())
		assert.NoError(t, err)
	})
}

func TestUserService_BulkDeactivate(t *testing.T) {
	ctx := context.Background()

	t.Run("suspends each listed user", func(t *testing.T) {
		env := newUserEnv(t)
		u1 := seedUser(t, env.repo, "alice", "alice@example.com")
		u2 := seedUser(t, env.repo, "bob", "bob@example.com")

		result, err := env.svc.BulkDeactivate(ctx, testActor(),
			[]string{u1.ID().String(), u2.ID().String()})
		require.NoError(t, err)

		assert.Equal(t, 2, result.Total)
		assert.Equal(t, 2, result.Succeeded)
		assert.Equal(t, 0, result.Failed)
		assert.True(t, result.Success())

		for _, u := range []*user.User{u1, u2} {
			got, err := env.repo.GetByID(ctx, u.ID())
			require.NoError(t, err)
			assert.False(t, got.IsActive())
		}
	})

	t.Run("callers own id fails while the rest proceed", func(t *testing.T) {
		env := newUserEnv(t)
		self := seedUser(t, env.repo, "admin", "admin@example.com")
		other := seedUser(t, env.repo, "carol", "carol@example.com")
		actor := audit.Actor{ID: self.ID(), Email: "admin@example.com"}

		result, err := env.svc.BulkDeactivate(ctx, actor,
			[]string{other.ID().String(), self.ID().String()})
		require.NoError(t, err)

		assert.Equal(t, 2, result.Total)
		assert.Equal(t, 1, result.Succeeded)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, self.ID().String(), result.Errors[0].ID)
		assert.Equal(t, "cannot deactivate your own account", result.Errors[0].Message)

		got, err := env.repo.GetByID(ctx, self.ID())
		require.NoError(t, err)
		assert.True(t, got.IsActive(), "the caller stays active")

		got, err = env.repo.GetByID(ctx, other.ID())
		require.NoError(t, err)
		assert.False(t, got.IsActive())
	})

	t.Run("unknown and malformed ids fail per entry", func(t *testing.T) {
		env := newUserEnv(t)
		u := seedUser(t, env.repo, "dave", "dave@example.com")

		result, err := env.svc.BulkDeactivate(ctx, testActor(),
			[]string{"not-a-uuid", shared.NewID().String(), u.ID().String()})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Succeeded)
		assert.Equal(t, 2, result.Failed)
		require.Len(t, result.Errors, 2)
		assert.Equal(t, "invalid id format", result.Errors[0].Message)
		assert.Equal(t, "user not found", result.Errors[1].Message)
	})

	t.Run("store failure aborts", func(t *testing.T) {
		env := newUserEnv(t)
		u := seedUser(t, env.repo, "erin", "erin@example.com")
		env.repo.updateErr = errors.New("connection refused")

		result, err := env.svc.BulkDeactivate(ctx, testActor(), []string{u.ID().String()})
		require.Error(t, err)
		assert.Nil(t, result)
	})

	t.Run("records one audit event for the batch", func(t *testing.T) {
		env := newUserEnv(t)
		u := seedUser(t, env.repo, "frank", "frank@example.com")

		_, err := env.svc.BulkDeactivate(ctx, testActor(), []string{u.ID().String()})
		require.NoError(t, err)

		require.Len(t, env.dispatcher.auditEvents, 1)
		event := env.dispatcher.auditEvents[0]
		assert.Equal(t, "user.bulk_deactivate", event.Action)
		assert.Equal(t, 1, event.Metadata["total"])
	})
}
