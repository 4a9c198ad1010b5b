package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/connecthub/api/internal/app"
	"github.com/connecthub/api/pkg/domain/connection"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/pagination"
	"github.com/connecthub/api/pkg/validator"
)

var connectionSortFields = map[string]string{
	"name":           "name",
	"driver":         "driver",
	"created_at":     "created_at",
	"last_tested_at": "last_tested_at",
}

// ConnectionHandler handles database connection registry requests.
type ConnectionHandler struct {
	service   *app.ConnectionService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewConnectionHandler creates a connection handler.
func NewConnectionHandler(svc *app.ConnectionService, v *validator.Validator, log *logger.Logger) *ConnectionHandler {
	return &ConnectionHandler{service: svc, validator: v, logger: log}
}

// ConnectionResponse is a connection in API responses. The secret
// reference names a credential slot; credentials themselves are never
// stored or returned.
type ConnectionResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Driver       string     `json:"driver"`
	Host         string     `json:"host"`
	Port         int        `json:"port"`
	Database     string     `json:"database,omitempty"`
	Username     string     `json:"username,omitempty"`
	SecretRef    string     `json:"secret_ref,omitempty"`
	TestSchedule string     `json:"test_schedule,omitempty"`
	LastStatus   string     `json:"last_status"`
	LastTestedAt *time.Time `json:"last_tested_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func toConnectionResponse(c *connection.Connection) ConnectionResponse {
	return ConnectionResponse{
		ID:           c.ID().String(),
		Name:         c.Name(),
		Driver:       string(c.Driver()),
		Host:         c.Host(),
		Port:         c.Port(),
		Database:     c.Database(),
		Username:     c.Username(),
		SecretRef:    c.SecretRef(),
		TestSchedule: c.TestSchedule(),
		LastStatus:   string(c.LastStatus()),
		LastTestedAt: c.LastTestedAt(),
		CreatedAt:    c.CreatedAt(),
		UpdatedAt:    c.UpdatedAt(),
	}
}

// Create handles POST /api/v1/connections.
func (h *ConnectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input app.CreateConnectionInput
	if err := decodeJSON(r, h.validator, &input); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), actorFromRequest(r), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toConnectionResponse(created))
}

// Get handles GET /api/v1/connections/{id}.
func (h *ConnectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	found, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toConnectionResponse(found))
}

// List handles GET /api/v1/connections.
func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := connection.Filter{
		Search:     query.Get("search"),
		Pagination: parsePagination(r),
		Sort:       parseSort(r, connectionSortFields),
	}
	if driver := connection.Driver(query.Get("driver")); driver != "" && driver.IsValid() {
		filter.Driver = &driver
	}

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}

	data := make([]ConnectionResponse, 0, len(result.Data))
	for _, c := range result.Data {
		data = append(data, toConnectionResponse(c))
	}

	respondJSON(w, http.StatusOK, pagination.Result[ConnectionResponse]{
		Data:       data,
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}

// Update handles PUT /api/v1/connections/{id}.
func (h *ConnectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	var input app.UpdateConnectionInput
	if err := decodeJSON(r, h.validator, &input); err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := h.service.Update(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toConnectionResponse(updated))
}

// Delete handles DELETE /api/v1/connections/{id}.
func (h *ConnectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), actorFromRequest(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Test handles POST /api/v1/connections/{id}/test.
func (h *ConnectionHandler) Test(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Test(r.Context(), actorFromRequest(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// TestAll handles POST /api/v1/connections/test-all. Each connection is
// tested independently; the response always reports per-connection
// results.
func (h *ConnectionHandler) TestAll(w http.ResponseWriter, r *http.Request) {
	reports, err := h.service.TestAll(r.Context(), actorFromRequest(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"data": reports})
}
