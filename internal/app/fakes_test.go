package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/connecthub/api/pkg/domain/application"
	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/domain/role"
	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/domain/user"
)

// memUserRepo is an in-memory user.Repository for service tests.
type memUserRepo struct {
	mu    sync.Mutex
	users map[shared.ID]*user.User

	// existsErr simulates an infrastructure failure on the existence
	// checks the import reconciler performs.
	existsErr error
	updateErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[shared.ID]*user.User)}
}

func (r *memUserRepo) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username() == u.Username() {
			return user.ErrUsernameTaken
		}
		if existing.Email() == u.Email() {
			return user.ErrEmailTaken
		}
	}
	r.users[u.ID()] = u
	return nil
}

func (r *memUserRepo) Update(_ context.Context, u *user.User) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID()]; !ok {
		return user.NotFoundError(u.ID())
	}
	r.users[u.ID()] = u
	return nil
}

func (r *memUserRepo) Delete(_ context.Context, id shared.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return user.NotFoundError(id)
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id shared.ID) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, user.NotFoundError(id)
	}
	return u, nil
}

func (r *memUserRepo) GetByUsername(_ context.Context, username string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username() == strings.ToLower(username) {
			return u, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email() == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, user.ErrUserNotFound
}

func (r *memUserRepo) GetByIDs(_ context.Context, ids []shared.ID) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*user.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memUserRepo) List(_ context.Context, _ user.Filter) ([]*user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*user.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memUserRepo) Count(_ context.Context, _ user.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.users)), nil
}

func (r *memUserRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username() == strings.ToLower(username) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email() == strings.ToLower(email) {
			return true, nil
		}
	}
	return false, nil
}

// memRoleRepo is an in-memory role.Repository. Assignments enforce the
// same referential behavior the schema does: assigning to an unknown
// user or role fails with not-found.
type memRoleRepo struct {
	mu          sync.Mutex
	roles       map[shared.ID]*role.Role
	assignments map[shared.ID]map[shared.ID]role.Assignment // userID -> roleID
	userRepo    *memUserRepo

	replaceErr error
}

func newMemRoleRepo(users *memUserRepo) *memRoleRepo {
	return &memRoleRepo{
		roles:       make(map[shared.ID]*role.Role),
		assignments: make(map[shared.ID]map[shared.ID]role.Assignment),
		userRepo:    users,
	}
}

func (r *memRoleRepo) Create(_ context.Context, rl *role.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.roles {
		if existing.Name() == rl.Name() {
			return role.ErrRoleNameTaken
		}
	}
	r.roles[rl.ID()] = rl
	return nil
}

func (r *memRoleRepo) Update(_ context.Context, rl *role.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[rl.ID()]; !ok {
		return role.NotFoundError(rl.ID())
	}
	r.roles[rl.ID()] = rl
	return nil
}

func (r *memRoleRepo) Delete(_ context.Context, id shared.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rl, ok := r.roles[id]
	if !ok {
		return role.NotFoundError(id)
	}
	if rl.IsSystem() {
		return role.ErrSystemRole
	}
	delete(r.roles, id)
	for _, byRole := range r.assignments {
		delete(byRole, id)
	}
	return nil
}

func (r *memRoleRepo) GetByID(_ context.Context, id shared.ID) (*role.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rl, ok := r.roles[id]
	if !ok {
		return nil, role.NotFoundError(id)
	}
	return rl, nil
}

func (r *memRoleRepo) GetByName(_ context.Context, name string) (*role.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rl := range r.roles {
		if rl.Name() == strings.ToLower(name) {
			return rl, nil
		}
	}
	return nil, role.ErrRoleNotFound
}

func (r *memRoleRepo) GetByIDs(_ context.Context, ids []shared.ID) ([]*role.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*role.Role, 0, len(ids))
	for _, id := range ids {
		if rl, ok := r.roles[id]; ok {
			out = append(out, rl)
		}
	}
	return out, nil
}

func (r *memRoleRepo) List(_ context.Context, _ role.Filter) ([]*role.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*role.Role, 0, len(r.roles))
	for _, rl := range r.roles {
		out = append(out, rl)
	}
	return out, nil
}

func (r *memRoleRepo) Count(_ context.Context, _ role.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.roles)), nil
}

func (r *memRoleRepo) ExistsByName(_ context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rl := range r.roles {
		if rl.Name() == strings.ToLower(name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRoleRepo) Assign(_ context.Context, a role.Assignment) error {
	if r.userRepo != nil {
		r.userRepo.mu.Lock()
		_, userOK := r.userRepo.users[a.UserID]
		r.userRepo.mu.Unlock()
		if !userOK {
			return user.NotFoundError(a.UserID)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.roles[a.RoleID]; !ok {
		return role.NotFoundError(a.RoleID)
	}
	if r.assignments[a.UserID] == nil {
		r.assignments[a.UserID] = make(map[shared.ID]role.Assignment)
	}
	if _, held := r.assignments[a.UserID][a.RoleID]; held {
		return nil // idempotent
	}
	r.assignments[a.UserID][a.RoleID] = a
	return nil
}

func (r *memRoleRepo) Remove(_ context.Context, userID, roleID shared.ID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.assignments[userID][roleID]; !held {
		return 0, nil
	}
	delete(r.assignments[userID], roleID)
	return 1, nil
}

func (r *memRoleRepo) ListRoleIDsForUser(_ context.Context, userID shared.ID) ([]shared.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.ID, 0)
	for roleID := range r.assignments[userID] {
		out = append(out, roleID)
	}
	return out, nil
}

func (r *memRoleRepo) ListRolesForUser(_ context.Context, userID shared.ID) ([]*role.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*role.Role, 0)
	for roleID := range r.assignments[userID] {
		if rl, ok := r.roles[roleID]; ok {
			out = append(out, rl)
		}
	}
	return out, nil
}

func (r *memRoleRepo) ListUserIDsForRole(_ context.Context, roleID shared.ID) ([]shared.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shared.ID, 0)
	for userID, byRole := range r.assignments {
		if _, held := byRole[roleID]; held {
			out = append(out, userID)
		}
	}
	return out, nil
}

func (r *memRoleRepo) ReplaceForUser(_ context.Context, userID shared.ID, add []role.Assignment, remove []shared.ID) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.assignments[userID] == nil {
		r.assignments[userID] = make(map[shared.ID]role.Assignment)
	}
	for _, roleID := range remove {
		delete(r.assignments[userID], roleID)
	}
	for _, a := range add {
		r.assignments[userID][a.RoleID] = a
	}
	return nil
}

// memApplicationRepo is an in-memory application.Repository.
type memApplicationRepo struct {
	mu   sync.Mutex
	apps map[shared.ID]*application.Application
}

func newMemApplicationRepo() *memApplicationRepo {
	return &memApplicationRepo{apps: make(map[shared.ID]*application.Application)}
}

func (r *memApplicationRepo) Create(_ context.Context, a *application.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.apps {
		if existing.Name() == a.Name() {
			return application.ErrNameTaken
		}
	}
	r.apps[a.ID()] = a
	return nil
}

func (r *memApplicationRepo) Update(_ context.Context, a *application.Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[a.ID()]; !ok {
		return application.NotFoundError(a.ID())
	}
	r.apps[a.ID()] = a
	return nil
}

func (r *memApplicationRepo) Delete(_ context.Context, id shared.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[id]; !ok {
		return application.NotFoundError(id)
	}
	delete(r.apps, id)
	return nil
}

func (r *memApplicationRepo) GetByID(_ context.Context, id shared.ID) (*application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.apps[id]
	if !ok {
		return nil, application.NotFoundError(id)
	}
	return a, nil
}

func (r *memApplicationRepo) GetByName(_ context.Context, name string) (*application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.apps {
		if a.Name() == name {
			return a, nil
		}
	}
	return nil, application.ErrApplicationNotFound
}

func (r *memApplicationRepo) List(_ context.Context, _ application.Filter) ([]*application.Application, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*application.Application, 0, len(r.apps))
	for _, a := range r.apps {
		out = append(out, a)
	}
	return out, nil
}

func (r *memApplicationRepo) Count(_ context.Context, _ application.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.apps)), nil
}

func (r *memApplicationRepo) ExistsByName(_ context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.apps {
		if a.Name() == name {
			return true, nil
		}
	}
	return false, nil
}

// memAuditRepo records audit events for assertions.
type memAuditRepo struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (r *memAuditRepo) Create(_ context.Context, e *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *memAuditRepo) List(_ context.Context, _ audit.Filter) ([]*audit.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*audit.Event(nil), r.events...), nil
}

func (r *memAuditRepo) Count(_ context.Context, _ audit.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.events)), nil
}

func (r *memAuditRepo) DeleteOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// fakeDispatcher captures enqueued side effects.
type fakeDispatcher struct {
	mu          sync.Mutex
	emails      []string // recipient addresses
	auditEvents []*audit.Event
}

func (d *fakeDispatcher) EnqueueWelcomeEmail(_ context.Context, email, _, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails = append(d.emails, email)
	return nil
}

func (d *fakeDispatcher) EnqueueAuditEvent(_ context.Context, e *audit.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.auditEvents = append(d.auditEvents, e)
	return nil
}

func (d *fakeDispatcher) auditActions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.auditEvents))
	for _, e := range d.auditEvents {
		out = append(out, e.Action)
	}
	return out
}

// fakeInvalidator records role cache invalidations.
type fakeInvalidator struct {
	mu          sync.Mutex
	invalidated []shared.ID
}

func (f *fakeInvalidator) Invalidate(_ context.Context, userIDs ...shared.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, userIDs...)
	return nil
}
