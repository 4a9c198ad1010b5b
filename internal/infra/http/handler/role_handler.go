package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/connecthub/api/internal/app"
	"github.com/connecthub/api/pkg/domain/role"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/pagination"
	"github.com/connecthub/api/pkg/validator"
)

var roleSortFields = map[string]string{
	"name":       "name",
	"created_at": "created_at",
}

// RoleHandler handles role CRUD and assignment management requests.
type RoleHandler struct {
	service   *app.RoleService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewRoleHandler creates a role handler.
func NewRoleHandler(svc *app.RoleService, v *validator.Validator, log *logger.Logger) *RoleHandler {
	return &RoleHandler{service: svc, validator: v, logger: log}
}

// RoleResponse is a role in API responses.
type RoleResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toRoleResponse(r *role.Role) RoleResponse {
	return RoleResponse{
		ID:          r.ID().String(),
		Name:        r.Name(),
		Description: r.Description(),
		IsSystem:    r.IsSystem(),
		CreatedAt:   r.CreatedAt(),
		UpdatedAt:   r.UpdatedAt(),
	}
}

func toRoleResponses(roles []*role.Role) []RoleResponse {
	out := make([]RoleResponse, 0, len(roles))
	for _, r := range roles {
		out = append(out, toRoleResponse(r))
	}
	return out
}

// Create handles POST /api/v1/roles.
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input app.CreateRoleInput
	if err := decodeJSON(r, h.validator, &input); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), actorFromRequest(r), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toRoleResponse(created))
}

// Get handles GET /api/v1/roles/{id}.
func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toRoleResponse(found))
}

// List handles GET /api/v1/roles.
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := role.Filter{
		Search:     r.URL.Query().Get("search"),
		Pagination: parsePagination(r),
		Sort:       parseSort(r, roleSortFields),
	}

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, pagination.Result[RoleResponse]{
		Data:       toRoleResponses(result.Data),
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

// Update handles PUT /api/v1/roles/{id}.
func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input app.UpdateRoleInput
	if err := decodeJSON(r, h.validator, &input); err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := h.service.Update(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toRoleResponse(updated))
}

// Delete handles DELETE /api/v1/roles/{id}.
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorFromRequest(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListForUser handles GET /api/v1/users/{id}/roles.
func (h *RoleHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListForUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"data": toRoleResponses(roles)})
}

type assignRolesRequest struct {
	UserID  string   `json:"user_id" validate:"required,uuid"`
	RoleIDs []string `json:"role_ids" validate:"dive,uuid"`
}

// AssignRoles handles POST /api/v1/management/users/assign-roles. The
// request carries the complete target role set for the user; current
// assignments not in the set are removed. The whole replacement is
// all-or-nothing.
func (h *RoleHandler) AssignRoles(w http.ResponseWriter, r *http.Request) {
	var req assignRolesRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.service.AssignRoles(r.Context(), actorFromRequest(r), req.UserID, req.RoleIDs); err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type removeRolesRequest struct {
	UserID  string   `json:"user_id" validate:"required,uuid"`
	RoleIDs []string `json:"role_ids" validate:"required,min=1,dive,uuid"`
}

// RemoveRoles handles POST /api/v1/management/users/remove-roles.
// Removal is per-pair: failures are reported in the outcome and the
// rest of the batch continues.
func (h *RoleHandler) RemoveRoles(w http.ResponseWriter, r *http.Request) {
	var req removeRolesRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.service.RemoveRolesFromUser(r.Context(), actorFromRequest(r), req.UserID, req.RoleIDs)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type roleMembersRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,uuid"`
}

// AssignUsers handles POST /api/v1/management/roles/{roleId}/assign-users.
// Assignment is idempotent per pair and partial across the batch.
func (h *RoleHandler) AssignUsers(w http.ResponseWriter, r *http.Request) {
	var req roleMembersRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.service.AssignUsersToRole(r.Context(), actorFromRequest(r), chi.URLParam(r, "roleId"), req.UserIDs)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// RemoveUsers handles POST /api/v1/management/roles/{roleId}/remove-users.
func (h *RoleHandler) RemoveUsers(w http.ResponseWriter, r *http.Request) {
	var req roleMembersRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.service.RemoveUsersFromRole(r.Context(), actorFromRequest(r), chi.URLParam(r, "roleId"), req.UserIDs)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
