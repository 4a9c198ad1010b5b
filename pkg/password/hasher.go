// Package password provides password hashing and policy validation.
package password

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Errors for password operations.
var (
	ErrTooShort    = errors.New("password is too short")
	ErrNoUppercase = errors.New("password must contain at least one uppercase letter")
	ErrNoLowercase = errors.New("password must contain at least one lowercase letter")
	ErrNoNumber    = errors.New("password must contain at least one number")
	ErrNoSpecial   = errors.New("password must contain at least one special character")
	ErrMismatch    = errors.New("password does not match")
	ErrInvalidHash = errors.New("invalid password hash")
)

// DefaultCost is the default bcrypt cost factor.
const DefaultCost = 12

// Policy defines password requirements.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireNumber  bool
	RequireSpecial bool
}

// DefaultPolicy returns a sensible default password policy.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:     8,
		RequireUpper:  true,
		RequireLower:  true,
		RequireNumber: true,
	}
}

// Hasher hashes and verifies passwords.
type Hasher struct {
	cost   int
	policy Policy
}

// Option configures the Hasher.
type Option func(*Hasher)

// WithCost sets the bcrypt cost factor.
func WithCost(cost int) Option {
	return func(h *Hasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// WithPolicy sets the password policy.
func WithPolicy(policy Policy) Option {
	return func(h *Hasher) {
		h.policy = policy
	}
}

// New creates a password hasher.
func New(opts ...Option) *Hasher {
	h := &Hasher{
		cost:   DefaultCost,
		policy: DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash hashes a password using bcrypt.
func (h *Hasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify checks a password against a hash.
func (h *Hasher) Verify(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatch
		}
		return ErrInvalidHash
	}
	return nil
}

// Validate checks a password against the hasher's policy.
func (h *Hasher) Validate(password string) error {
	return ValidateWithPolicy(password, h.policy)
}

// ValidateWithPolicy validates a password against a specific policy.
func ValidateWithPolicy(password string, policy Policy) error {
	if len(password) < policy.MinLength {
		return ErrTooShort
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char):
			hasSpecial = true
		}
	}

	if policy.RequireUpper && !hasUpper {
		return ErrNoUppercase
	}
	if policy.RequireLower && !hasLower {
		return ErrNoLowercase
	}
	if policy.RequireNumber && !hasNumber {
		return ErrNoNumber
	}
	if policy.RequireSpecial && !hasSpecial {
		return ErrNoSpecial
	}

	return nil
}

// GenerateRandom generates a URL-safe random password of the given byte
// length. Used for imported users created without an explicit password.
func GenerateRandom(length int) (string, error) {
	if length < 16 {
		length = 16
	}
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes), nil
}
