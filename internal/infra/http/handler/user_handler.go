package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/connecthub/api/internal/app"
	"github.com/connecthub/api/pkg/domain/user"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/pagination"
	"github.com/connecthub/api/pkg/validator"
)

// userSortFields maps user-facing sort fields to columns.
var userSortFields = map[string]string{
	"username":   "username",
	"email":      "email",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// UserHandler handles user management requests.
type UserHandler struct {
	service   *app.UserService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewUserHandler creates a user handler.
func NewUserHandler(svc *app.UserService, v *validator.Validator, log *logger.Logger) *UserHandler {
	return &UserHandler{service: svc, validator: v, logger: log}
}

// UserResponse is a user in API responses. The password hash never
// leaves the service layer.
type UserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserResponse(u *user.User) UserResponse {
	return UserResponse{
		ID:        u.ID().String(),
		Username:  u.Username(),
		Email:     u.Email(),
		FullName:  u.FullName(),
		Status:    string(u.Status()),
		CreatedAt: u.CreatedAt(),
		UpdatedAt: u.UpdatedAt(),
	}
}

func toUserResponses(users []*user.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out
}

// Create handles POST /api/v1/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input app.CreateUserInput
	if err := decodeJSON(r, h.validator, &input); err != nil {
		respondError(w, r, err)
		return
	}

	u, err := h.service.Create(r.Context(), actorFromRequest(r), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toUserResponse(u))
}

// Get handles GET /api/v1/users/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toUserResponse(u))
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := user.Filter{
		Search:     query.Get("search"),
		Pagination: parsePagination(r),
		Sort:       parseSort(r, userSortFields),
	}
	if status := user.Status(query.Get("status")); status.IsValid() {
		filter.Status = &status
	}

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, pagination.Result[UserResponse]{
		Data:       toUserResponses(result.Data),
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

// Update handles PUT /api/v1/users/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input app.UpdateUserInput
	if err := decodeJSON(r, h.validator, &input); err != nil {
		respondError(w, r, err)
		return
	}

	u, err := h.service.Update(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toUserResponse(u))
}

// Suspend handles POST /api/v1/users/{id}/suspend.
func (h *UserHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Suspend(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toUserResponse(u))
}

// Activate handles POST /api/v1/users/{id}/activate.
func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.Activate(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toUserResponse(u))
}

// Delete handles DELETE /api/v1/users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorFromRequest(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type bulkDeactivateRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,uuid"`
}

// BulkDeactivate handles POST /api/v1/users/bulk-deactivate. Partial
// failures are reported per user in a 200 response; the caller's own
// account is never deactivated.
func (h *UserHandler) BulkDeactivate(w http.ResponseWriter, r *http.Request) {
	var req bulkDeactivateRequest
	if err := decodeJSON(r, h.validator, &req); err != nil {
		respondError(w, r, err)
		return
	}

	result, err := h.service.BulkDeactivate(r.Context(), actorFromRequest(r), req.UserIDs)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}
