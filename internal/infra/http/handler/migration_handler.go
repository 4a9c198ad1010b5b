package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/connecthub/api/internal/app"
	"github.com/connecthub/api/pkg/apierror"
	"github.com/connecthub/api/pkg/domain/migration"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/validator"
)

// MigrationHandler handles bulk import requests. Per-record failures
// come back in a 200 outcome; only a malformed request or an
// infrastructure failure produces a non-2xx status.
type MigrationHandler struct {
	service   *app.MigrationService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewMigrationHandler creates a migration handler.
func NewMigrationHandler(svc *app.MigrationService, v *validator.Validator, log *logger.Logger) *MigrationHandler {
	return &MigrationHandler{service: svc, validator: v, logger: log}
}

type migrationRequest struct {
	Type              string            `json:"type" validate:"required,migration_type"`
	Records           []json.RawMessage `json:"records" validate:"required,min=1"`
	OverwriteExisting bool              `json:"overwrite_existing"`
	ValidateOnly      bool              `json:"validate_only"`
}

func (h *MigrationHandler) decodeRequest(r *http.Request, forcedType string) (migration.Request, error) {
	var req migrationRequest
	if forcedType != "" {
		// Typed endpoints carry the type in the path.
		req.Type = forcedType
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return migration.Request{}, apierror.SafeBadRequest(err)
	}
	if forcedType != "" {
		req.Type = forcedType
	}
	if err := h.validator.Validate(&req); err != nil {
		return migration.Request{}, apierror.BadRequest(err.Error())
	}

	return migration.Request{
		Type:              migration.Type(req.Type),
		Records:           req.Records,
		OverwriteExisting: req.OverwriteExisting,
		ValidateOnly:      req.ValidateOnly,
	}, nil
}

// Validate handles POST /api/v1/migration/validate. It dry-runs the
// batch: every record is checked but nothing is written.
func (h *MigrationHandler) Validate(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeRequest(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}

	outcome, err := h.service.Validate(r.Context(), actorFromRequest(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

// Import handles POST /api/v1/migration/import.
func (h *MigrationHandler) Import(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeRequest(r, "")
	if err != nil {
		respondError(w, r, err)
		return
	}

	outcome, err := h.service.Run(r.Context(), actorFromRequest(r), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, outcome)
}

// ImportTyped returns a handler for the typed import endpoints
// POST /api/v1/migration/{users|roles|applications}.
func (h *MigrationHandler) ImportTyped(migrationType migration.Type) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.decodeRequest(r, string(migrationType))
		if err != nil {
			respondError(w, r, err)
			return
		}

		outcome, err := h.service.Run(r.Context(), actorFromRequest(r), req)
		if err != nil {
			respondError(w, r, err)
			return
		}

		respondJSON(w, http.StatusOK, outcome)
	}
}

// Template handles GET /api/v1/migration/template/{type}. It returns an
// example record schema for the requested migration type.
func (h *MigrationHandler) Template(w http.ResponseWriter, r *http.Request) {
	template, err := h.service.Template(chi.URLParam(r, "type"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, template)
}
