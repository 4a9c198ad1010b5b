// Package handler contains the HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/connecthub/api/internal/infra/http/middleware"
	"github.com/connecthub/api/pkg/apierror"
	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/pagination"
	"github.com/connecthub/api/pkg/validator"
)

// decodeJSON decodes and validates a JSON request body. Unknown fields
// are rejected so typos fail loudly instead of silently dropping input.
func decodeJSON(r *http.Request, v *validator.Validator, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return apierror.SafeBadRequest(err)
	}
	if v != nil {
		if err := v.Validate(dst); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				return apierror.ValidationFailed("Validation failed", verrs)
			}
			return apierror.SafeBadRequest(err)
		}
	}
	return nil
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondError maps an error onto the API error taxonomy and writes it.
// Unique-key conflicts surface as 400 like other validation failures.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())

	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		apiErr.WriteJSONWithRequestID(w, requestID)
		return
	}

	switch {
	case shared.IsValidation(err):
		apierror.BadRequest(err.Error()).WriteJSONWithRequestID(w, requestID)
	case shared.IsConflict(err):
		apierror.Conflict(err.Error()).WriteJSONWithRequestID(w, requestID)
	case shared.IsNotFound(err):
		apierror.New(http.StatusNotFound, apierror.CodeNotFound, err.Error()).WriteJSONWithRequestID(w, requestID)
	case shared.IsForbidden(err):
		apierror.Forbidden(err.Error()).WriteJSONWithRequestID(w, requestID)
	case errors.Is(err, shared.ErrUnauthorized):
		apierror.Unauthorized("Invalid credentials").WriteJSONWithRequestID(w, requestID)
	default:
		apierror.InternalError(err).WriteJSONWithRequestID(w, requestID)
	}
}

// actorFromRequest builds the request-scoped actor handed to services.
// Services never read ambient request state themselves.
func actorFromRequest(r *http.Request) audit.Actor {
	ctx := r.Context()

	actor := audit.Actor{
		Email:     middleware.GetEmail(ctx),
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
		RequestID: middleware.GetRequestID(ctx),
	}

	if userID := middleware.GetUserID(ctx); userID != "" {
		if id, err := shared.ParseID(userID); err == nil {
			actor.ID = id
		}
	}

	return actor
}

func clientIP(r *http.Request) string {
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return strings.TrimSpace(xrip)
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		return ip[:idx]
	}
	return ip
}

// parsePagination reads page/per_page query parameters with defaults.
func parsePagination(r *http.Request) pagination.Pagination {
	query := r.URL.Query()
	return pagination.New(
		parseQueryInt(query.Get("page"), 1),
		parseQueryInt(query.Get("per_page"), 20),
	)
}

// parseSort parses the sort query parameter against allowed fields.
func parseSort(r *http.Request, allowedFields map[string]string) *pagination.SortOption {
	return pagination.NewSortOption(allowedFields).Parse(r.URL.Query().Get("sort"))
}

func parseQueryInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}
