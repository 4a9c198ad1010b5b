package app

import (
	"context"
	"fmt"
	"time"

	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/domain/role"
	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/domain/user"
	"github.com/connecthub/api/pkg/jwt"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/password"
)

// AuthService handles credential verification and token issuance.
type AuthService struct {
	users  user.Repository
	roles  role.Repository
	hasher *password.Hasher
	tokens *jwt.Manager
	audit  *AuditService
	logger *logger.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(users user.Repository, roles role.Repository, hasher *password.Hasher, tokens *jwt.Manager, auditSvc *AuditService, log *logger.Logger) *AuthService {
	return &AuthService{
		users:  users,
		roles:  roles,
		hasher: hasher,
		tokens: tokens,
		audit:  auditSvc,
		logger: log.With("service", "auth"),
	}
}

// LoginInput is the input for authenticating.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginOutput carries the issued token.
type LoginOutput struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login verifies credentials and issues an access token. All failure
// modes report the same unauthorized error so the response does not
// reveal whether the username exists.
func (s *AuthService) Login(ctx context.Context, actor audit.Actor, input LoginInput) (*LoginOutput, error) {
	invalid := fmt.Errorf("%w: invalid credentials", shared.ErrUnauthorized)

	u, err := s.users.GetByUsername(ctx, input.Username)
	if err != nil {
		if shared.IsNotFound(err) {
			s.recordDenied(ctx, actor, input.Username, "unknown username")
			return nil, invalid
		}
		return nil, err
	}

	if !u.IsActive() {
		s.recordDenied(ctx, actor, input.Username, "account suspended")
		return nil, invalid
	}
	if err := s.hasher.Verify(input.Password, u.PasswordHash()); err != nil {
		s.recordDenied(ctx, actor, input.Username, "wrong password")
		return nil, invalid
	}

	roles, err := s.roles.ListRolesForUser(ctx, u.ID())
	if err != nil {
		return nil, err
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name()
	}

	token, expiresAt, err := s.tokens.Issue(u.ID().String(), u.Username(), u.Email(), names)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("user logged in", "user_id", u.ID().String())
	loginActor := actor
	loginActor.ID = u.ID()
	loginActor.Email = u.Email()
	s.audit.Record(ctx, audit.NewSuccessEvent(loginActor, "auth.login", "user", u.ID().String()).
		WithResourceName(u.Username()))

	return &LoginOutput{Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) recordDenied(ctx context.Context, actor audit.Actor, username, reason string) {
	s.audit.Record(ctx, audit.NewDeniedEvent(actor, "auth.login", "user", "").
		WithResourceName(username).
		WithMessage(reason))
}
