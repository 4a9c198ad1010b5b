package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/jwt"
	"github.com/connecthub/api/pkg/logger"
)

type stubResolver struct {
	roles map[string][]string
	err   error
}

func (s *stubResolver) RolesForUser(_ context.Context, userID shared.ID) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.roles[userID.String()], nil
}

func newTestTokens(t *testing.T) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewManager("0123456789abcdef0123456789abcdef", "connecthub", time.Hour)
	require.NoError(t, err)
	return m
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth(t *testing.T) {
	tokens := newTestTokens(t)
	userID := shared.NewID()
	log := logger.NewNop()

	issue := func(t *testing.T) string {
		t.Helper()
		token, _, err := tokens.Issue(userID.String(), "alice", "alice@example.com", nil)
		require.NoError(t, err)
		return token
	}

	t.Run("missing token is unauthorized", func(t *testing.T) {
		mw := Auth(tokens, &stubResolver{}, log)
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header is unauthorized", func(t *testing.T) {
		mw := Auth(tokens, &stubResolver{}, log)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Basic abc123")
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token is unauthorized", func(t *testing.T) {
		mw := Auth(tokens, &stubResolver{}, log)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("resolver failure is an internal error", func(t *testing.T) {
		mw := Auth(tokens, &stubResolver{err: errors.New("redis down")}, log)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+issue(t))
		rec := httptest.NewRecorder()
		mw(okHandler()).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("roles come from the resolver, not the token", func(t *testing.T) {
		resolver := &stubResolver{roles: map[string][]string{
			userID.String(): {"platform_admin"},
		}}
		token, _, err := tokens.Issue(userID.String(), "alice", "alice@example.com", []string{"stale_role"})
		require.NoError(t, err)

		var seenRoles []string
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seenRoles = GetRoles(r.Context())
			assert.Equal(t, userID.String(), GetUserID(r.Context()))
			assert.Equal(t, "alice", GetUsername(r.Context()))
			assert.Equal(t, "alice@example.com", GetEmail(r.Context()))
			w.WriteHeader(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		Auth(tokens, resolver, log)(handler).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"platform_admin"}, seenRoles)
	})
}

func TestRequireRole(t *testing.T) {
	withRoles := func(roles []string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if roles != nil {
			req = req.WithContext(context.WithValue(req.Context(), RolesKey, roles))
		}
		return req
	}

	tests := []struct {
		name       string
		required   []string
		held       []string
		wantStatus int
	}{
		{
			name:       "holder of required role passes",
			required:   []string{"admin"},
			held:       []string{"admin"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "any of several required roles suffices",
			required:   []string{"admin", "platform_admin"},
			held:       []string{"platform_admin"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong role is forbidden",
			required:   []string{"platform_admin"},
			held:       []string{"admin"},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "no roles at all is forbidden",
			required:   []string{"admin"},
			held:       nil,
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RequireRole(tt.required...)(okHandler()).ServeHTTP(rec, withRoles(tt.held))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
