package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/connecthub/api/internal/app"
	"github.com/connecthub/api/pkg/domain/application"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/pagination"
	"github.com/connecthub/api/pkg/validator"
)

var applicationSortFields = map[string]string{
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// ApplicationHandler handles application registry requests.
type ApplicationHandler struct {
	service   *app.ApplicationService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewApplicationHandler creates an application handler.
func NewApplicationHandler(svc *app.ApplicationService, v *validator.Validator, log *logger.Logger) *ApplicationHandler {
	return &ApplicationHandler{service: svc, validator: v, logger: log}
}

// ApplicationResponse is an application in API responses.
type ApplicationResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	OwnerEmail  string    `json:"owner_email,omitempty"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toApplicationResponse(a *application.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:          a.ID().String(),
		Name:        a.Name(),
		Description: a.Description(),
		URL:         a.URL(),
		OwnerEmail:  a.OwnerEmail(),
		Enabled:     a.IsEnabled(),
		CreatedAt:   a.CreatedAt(),
		UpdatedAt:   a.UpdatedAt(),
	}
}

// Create handles POST /api/v1/applications.
func (h *ApplicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input app.CreateApplicationInput
	if err := decodeJSON(r, h.validator, &input); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), actorFromRequest(r), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toApplicationResponse(created))
}

// Get handles GET /api/v1/applications/{id}.
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toApplicationResponse(found))
}

// List handles GET /api/v1/applications.
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := application.Filter{
		Search:     query.Get("search"),
		Pagination: parsePagination(r),
		Sort:       parseSort(r, applicationSortFields),
	}
	if enabled := query.Get("enabled"); enabled != "" {
		val := enabled == "true" || enabled == "1"
		filter.Enabled = &val
	}

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}

	data := make([]ApplicationResponse, 0, len(result.Data))
	for _, a := range result.Data {
		data = append(data, toApplicationResponse(a))
	}

	respondJSON(w, http.StatusOK, pagination.Result[ApplicationResponse]{
		Data:       data,
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

// Update handles PUT /api/v1/applications/{id}.
func (h *ApplicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input app.UpdateApplicationInput
	if err := decodeJSON(r, h.validator, &input); err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := h.service.Update(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toApplicationResponse(updated))
}

// Delete handles DELETE /api/v1/applications/{id}.
func (h *ApplicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorFromRequest(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
