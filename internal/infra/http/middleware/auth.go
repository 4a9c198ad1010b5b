package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/connecthub/api/pkg/apierror"
	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/jwt"
	"github.com/connecthub/api/pkg/logger"
)

// Auth-related context keys.
const (
	UserIDKey                     = logger.ContextKeyUserID
	UsernameKey logger.ContextKey = "username"
	EmailKey    logger.ContextKey = "email"
	RolesKey    logger.ContextKey = "roles"
)

// RoleResolver returns the current role names for a user. Roles are
// resolved per request rather than trusted from the token, so an
// assignment change takes effect without waiting for token expiry.
type RoleResolver interface {
	RolesForUser(ctx context.Context, userID shared.ID) ([]string, error)
}

// GetUserID extracts the authenticated user id from context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetUsername extracts the username from context.
func GetUsername(ctx context.Context) string {
	if username, ok := ctx.Value(UsernameKey).(string); ok {
		return username
	}
	return ""
}

// GetEmail extracts the user email from context.
func GetEmail(ctx context.Context) string {
	if email, ok := ctx.Value(EmailKey).(string); ok {
		return email
	}
	return ""
}

// GetRoles extracts the resolved role names from context.
func GetRoles(ctx context.Context) []string {
	if roles, ok := ctx.Value(RolesKey).([]string); ok {
		return roles
	}
	return nil
}

// Auth verifies the bearer token and resolves the caller's roles into
// the request context.
func Auth(tokens *jwt.Manager, resolver RoleResolver, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				apierror.Unauthorized("Missing authorization token").WriteJSON(w)
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				apierror.Unauthorized("Invalid or expired token").WriteJSON(w)
				return
			}

			userID, err := shared.ParseID(claims.UserID)
			if err != nil {
				apierror.Unauthorized("Invalid token subject").WriteJSON(w)
				return
			}

			roles, err := resolver.RolesForUser(r.Context(), userID)
			if err != nil {
				log.Error("failed to resolve roles",
					"user_id", claims.UserID,
					"request_id", GetRequestID(r.Context()),
					"error", err,
				)
				apierror.InternalError(err).WriteJSON(w)
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UsernameKey, claims.Username)
			ctx = context.WithValue(ctx, EmailKey, claims.Email)
			ctx = context.WithValue(ctx, RolesKey, roles)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows the request through when the caller holds any of
// the required roles. Routes declare their required roles once at
// registration instead of checking inside handlers.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRoles := GetRoles(r.Context())
			if len(userRoles) == 0 {
				apierror.Forbidden("No role assigned").WriteJSON(w)
				return
			}

			for _, required := range roles {
				if slices.Contains(userRoles, required) {
					next.ServeHTTP(w, r)
					return
				}
			}

			apierror.Forbidden("Insufficient permissions").WriteJSON(w)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
