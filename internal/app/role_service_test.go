package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connecthub/api/pkg/domain/role"
	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/logger"
)

type roleEnv struct {
	users       *memUserRepo
	roles       *memRoleRepo
	invalidator *fakeInvalidator
	dispatcher  *fakeDispatcher
	svc         *RoleService
}

func newRoleEnv(t *testing.T) *roleEnv {
	t.Helper()

	users := newMemUserRepo()
	dispatcher := &fakeDispatcher{}
	env := &roleEnv{
		users:       users,
		roles:       newMemRoleRepo(users),
		invalidator: &fakeInvalidator{},
		dispatcher:  dispatcher,
	}
	auditSvc := NewAuditService(&memAuditRepo{}, dispatcher, logger.NewNop())
	env.svc = NewRoleService(env.roles, env.users, env.invalidator, auditSvc, logger.NewNop())
	return env
}

func (e *roleEnv) roleIDsFor(t *testing.T, userID shared.ID) map[shared.ID]struct{} {
	t.Helper()
	ids, err := e.roles.ListRoleIDsForUser(context.Background(), userID)
	require.NoError(t, err)
	set := make(map[shared.ID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func TestRoleService_AssignRoles(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces the current role set with the target set", func(t *testing.T) {
		env := newRoleEnv(t)
		u := seedUser(t, env.users, "alice", "alice@example.com")
		kept := seedRole(t, env.roles, "operator")
		dropped := seedRole(t, env.roles, "viewer")
		added := seedRole(t, env.roles, "auditor")

		require.NoError(t, env.svc.AssignRoles(ctx, testActor(), u.ID().String(),
			[]string{kept.ID().String(), dropped.ID().String()}))

		err := env.svc.AssignRoles(ctx, testActor(), u.ID().String(),
			[]string{kept.ID().String(), added.ID().String()})
		require.NoError(t, err)

		held := env.roleIDsFor(t, u.ID())
		assert.Len(t, held, 2)
		assert.Contains(t, held, kept.ID())
		assert.Contains(t, held, added.ID())
		assert.NotContains(t, held, dropped.ID())
	})

	t.Run("empty target set removes every role", func(t *testing.T) {
		env := newRoleEnv(t)
		u := seedUser(t, env.users, "bob", "bob@example.com")
		r := seedRole(t, env.roles, "operator")

		require.NoError(t, env.svc.AssignRoles(ctx, testActor(), u.ID().String(), []string{r.ID().String()}))
		require.NoError(t, env.svc.AssignRoles(ctx, testActor(), u.ID().String(), nil))

		assert.Empty(t, env.roleIDsFor(t, u.ID()))
	})

	t.Run("duplicate ids in the target collapse to one assignment", func(t *testing.T) {
		env := newRoleEnv(t)
		u := seedUser(t, env.users, "carol", "carol@example.com")
		r := seedRole(t, env.roles, "operator")

		err := env.svc.AssignRoles(ctx, testActor(), u.ID().String(),
			[]string{r.ID().String(), r.ID().String()})
		require.NoError(t, err)

		assert.Len(t, env.roleIDsFor(t, u.ID()), 1)
	})

	t.Run("missing user is not found", func(t *testing.T) {
		env := newRoleEnv(t)
		r := seedRole(t, env.roles, "operator")

		err := env.svc.AssignRoles(ctx, testActor(), shared.NewID().String(), []string{r.ID().String()})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("missing role aborts without touching current assignments", func(t *testing.T) {
		env := newRoleEnv(t)
		u := seedUser(t, env.users, "dave", "dave@example.com")
		held := seedRole(t, env.roles, "operator")
		require.NoError(t, env.svc.AssignRoles(ctx, testActor(), u.ID().String(), []string{held.ID().String()}))

		ghost := shared.NewID()
		err := env.svc.AssignRoles(ctx, testActor(), u.ID().String(),
			[]string{held.ID().String(), ghost.String()})
		require.ErrorIs(t, err, shared.ErrValidation)
		assert.Contains(t, err.Error(), ghost.String())

		current := env.roleIDsFor(t, u.ID())
		assert.Len(t, current, 1)
		assert.Contains(t, current, held.ID())
	})

	t.Run("invalid ids are validation errors", func(t *testing.T) {
		env := newRoleEnv(t)
		u := seedUser(t, env.users, "erin", "erin@example.com")

		err := env.svc.AssignRoles(ctx, testActor(), "not-a-uuid", nil)
		assert.ErrorIs(t, err, shared.ErrValidation)

		err = env.svc.AssignRoles(ctx, testActor(), u.ID().String(), []string{"not-a-uuid"})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("replace failure surfaces and skips audit", func(t *testing.T) {
		env := newRoleEnv(t)
		u := seedUser(t, env.users, "frank", "frank@example.com")
		r := seedRole(t, env.roles, "operator")
		env.roles.replaceErr = errors.New("tx aborted")

		err := env.svc.AssignRoles(ctx, testActor(), u.ID().String(), []string{r.ID().String()})
		require.Error(t, err)
		assert.Empty(t, env.dispatcher.auditEvents)
		assert.Empty(t, env.invalidator.invalidated)
	})

	t.Run("invalidates the user's cached role set", func(t *testing.T) {
		env := newRoleEnv(t)
		u := seedUser(t, env.users, "grace", "grace@example.com")
		r := seedRole(t, env.roles, "operator")

		require.NoError(t, env.svc.AssignRoles(ctx, testActor(), u.ID().String(), []string{r.ID().String()}))

		assert.Equal(t, []shared.ID{u.ID()}, env.invalidator.invalidated)
		require.Len(t, env.dispatcher.auditEvents, 1)
		assert.Equal(t, "role.assign_roles", env.dispatcher.auditEvents[0].Action)
	})
}

func TestRoleService_RemoveRolesFromUser(t *testing.T) {
	ctx := context.Background()

	t.Run("removes held roles and reports missing pairs", func(t *testing.T) {
		env := newRoleEnv(t)
		u := seedUser(t, env.users, "alice", "alice@example.com")
		held := seedRole(t, env.roles, "operator")
		notHeld := seedRole(t, env.roles, "viewer")
		require.NoError(t, env.svc.AssignRoles(ctx, testActor(), u.ID().String(), []string{held.ID().String()}))

		result, err := env.svc.RemoveRolesFromUser(ctx, testActor(), u.ID().String(),
			[]string{held.ID().String(), notHeld.ID().String()})
		require.NoError(t, err)

		assert.Equal(t, 2, result.Total)
		assert.Equal(t, 1, result.Succeeded)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, notHeld.ID().String(), result.Errors[0].ID)
		assert.Equal(t, "role assignment not found", result.Errors[0].Message)

		assert.Empty(t, env.roleIDsFor(t, u.ID()))
	})

	t.Run("missing user is not found", func(t *testing.T) {
		env := newRoleEnv(t)

		_, err := env.svc.RemoveRolesFromUser(ctx, testActor(), shared.NewID().String(), []string{shared.NewID().String()})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestRoleService_AssignUsersToRole(t *testing.T) {
	ctx := context.Background()

	t.Run("per-user outcomes with idempotent re-assignment", func(t *testing.T) {
		env := newRoleEnv(t)
		r := seedRole(t, env.roles, "operator")
		u1 := seedUser(t, env.users, "alice", "alice@example.com")
		u2 := seedUser(t, env.users, "bob", "bob@example.com")
		require.NoError(t, env.roles.Assign(ctx, role.Assignment{UserID: u1.ID(), RoleID: r.ID()}))

		result, err := env.svc.AssignUsersToRole(ctx, testActor(), r.ID().String(),
			[]string{u1.ID().String(), u2.ID().String(), shared.NewID().String()})
		require.NoError(t, err)

		assert.Equal(t, 3, result.Total)
		assert.Equal(t, 2, result.Succeeded, "re-assigning a held role is a no-op success")
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "user not found", result.Errors[0].Message)

		assert.ElementsMatch(t, []shared.ID{u1.ID(), u2.ID()}, env.invalidator.invalidated)
	})

	t.Run("missing role is not found", func(t *testing.T) {
		env := newRoleEnv(t)
		u := seedUser(t, env.users, "alice", "alice@example.com")

		_, err := env.svc.AssignUsersToRole(ctx, testActor(), shared.NewID().String(), []string{u.ID().String()})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestRoleService_RemoveUsersFromRole(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the role from each holder", func(t *testing.T) {
		env := newRoleEnv(t)
		r := seedRole(t, env.roles, "operator")
		holder := seedUser(t, env.users, "alice", "alice@example.com")
		bystander := seedUser(t, env.users, "bob", "bob@example.com")
		require.NoError(t, env.roles.Assign(ctx, role.Assignment{UserID: holder.ID(), RoleID: r.ID()}))

		result, err := env.svc.RemoveUsersFromRole(ctx, testActor(), r.ID().String(),
			[]string{holder.ID().String(), bystander.ID().String()})
		require.NoError(t, err)

		assert.Equal(t, 1, result.Succeeded)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "role assignment not found", result.Errors[0].Message)
		assert.Empty(t, env.roleIDsFor(t, holder.ID()))
	})
}

func TestRoleService_RoleNamesForUser(t *testing.T) {
	ctx := context.Background()

	env := newRoleEnv(t)
	u := seedUser(t, env.users, "alice", "alice@example.com")
	r1 := seedRole(t, env.roles, "operator")
	r2 := seedRole(t, env.roles, "auditor")
	require.NoError(t, env.svc.AssignRoles(ctx, testActor(), u.ID().String(),
		[]string{r1.ID().String(), r2.ID().String()}))

	names, err := env.svc.RoleNamesForUser(ctx, u.ID())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"operator", "auditor"}, names)
}

func TestRoleService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("invalidates every holder", func(t *testing.T) {
		env := newRoleEnv(t)
		r := seedRole(t, env.roles, "operator")
		u1 := seedUser(t, env.users, "alice", "alice@example.com")
		u2 := seedUser(t, env.users, "bob", "bob@example.com")
		require.NoError(t, env.roles.Assign(ctx, role.Assignment{UserID: u1.ID(), RoleID: r.ID()}))
		require.NoError(t, env.roles.Assign(ctx, role.Assignment{UserID: u2.ID(), RoleID: r.ID()}))

		require.NoError(t, env.svc.Delete(ctx, testActor(), r.ID().String()))

		assert.ElementsMatch(t, []shared.ID{u1.ID(), u2.ID()}, env.invalidator.invalidated)
		assert.Empty(t, env.roleIDsFor(t, u1.ID()))
	})

	t.Run("system roles cannot be deleted", func(t *testing.T) {
		env := newRoleEnv(t)
		now := time.Now().UTC()
		r := role.Reconstitute(shared.NewID(), role.NameAdmin, "", true, now, now)
		require.NoError(t, env.roles.Create(ctx, r))

		err := env.svc.Delete(ctx, testActor(), r.ID().String())
		assert.ErrorIs(t, err, role.ErrSystemRole)
	})
}
