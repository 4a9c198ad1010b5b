// Package user defines the user entity and its persistence contract.
package user

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/connecthub/api/pkg/domain/shared"
)

// Status represents the lifecycle state of a user account.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
)

// IsValid reports whether the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSuspended:
		return true
	default:
		return false
	}
}

// User is an administrable account. Username and email are unique
// across the store.
type User struct {
	id           shared.ID
	username     string
	email        string
	fullName     string
	passwordHash string
	status       Status
	createdAt    time.Time
	updatedAt    time.Time
}

// New creates an active user. Username and email are normalized to
// lowercase before uniqueness is checked anywhere downstream.
func New(username, email, fullName, passwordHash string) (*User, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" {
		return nil, fmt.Errorf("%w: username is required", shared.ErrValidation)
	}
	if len(username) < 3 || len(username) > 64 {
		return nil, fmt.Errorf("%w: username must be between 3 and 64 characters", shared.ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", shared.ErrValidation)
	}
	if passwordHash == "" {
		return nil, fmt.Errorf("%w: password hash is required", shared.ErrValidation)
	}

	now := time.Now().UTC()
	return &User{
		id:           shared.NewID(),
		username:     username,
		email:        email,
		fullName:     strings.TrimSpace(fullName),
		passwordHash: passwordHash,
		status:       StatusActive,
		createdAt:    now,
		updatedAt:    now,
	}, nil
}

// Reconstitute rebuilds a user from stored state without validation.
func Reconstitute(id shared.ID, username, email, fullName, passwordHash string, status Status, createdAt, updatedAt time.Time) *User {
	return &User{
		id:           id,
		username:     username,
		email:        email,
		fullName:     fullName,
		passwordHash: passwordHash,
		status:       status,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (u *User) ID() shared.ID        { return u.id }
func (u *User) Username() string     { return u.username }
func (u *User) Email() string        { return u.email }
func (u *User) FullName() string     { return u.fullName }
func (u *User) PasswordHash() string { return u.passwordHash }
func (u *User) Status() Status       { return u.status }
func (u *User) CreatedAt() time.Time { return u.createdAt }
func (u *User) UpdatedAt() time.Time { return u.updatedAt }

// IsActive reports whether the account can authenticate.
func (u *User) IsActive() bool {
	return u.status == StatusActive
}

// Suspend marks the account as suspended.
func (u *User) Suspend() {
	u.status = StatusSuspended
	u.updatedAt = time.Now().UTC()
}

// Activate restores a suspended account.
func (u *User) Activate() {
	u.status = StatusActive
	u.updatedAt = time.Now().UTC()
}

// UpdateProfile changes the mutable profile fields.
func (u *User) UpdateProfile(email, fullName string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid email address", shared.ErrValidation)
	}
	u.email = email
	u.fullName = strings.TrimSpace(fullName)
	u.updatedAt = time.Now().UTC()
	return nil
}

// SetPasswordHash replaces the stored credential.
func (u *User) SetPasswordHash(hash string) {
	u.passwordHash = hash
	u.updatedAt = time.Now().UTC()
}
