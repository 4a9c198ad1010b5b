package handler

import (
	"net/http"

	"github.com/connecthub/api/internal/app"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/validator"
)

// AuthHandler handles authentication requests.
type AuthHandler struct {
	service   *app.AuthService
	validator *validator.Validator
	logger    *logger.Logger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(svc *app.AuthService, v *validator.Validator, log *logger.Logger) *AuthHandler {
	return &AuthHandler{service: svc, validator: v, logger: log}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input app.LoginInput
	if err := decodeJSON(r, h.validator, &input); err != nil {
		respondError(w, r, err)
		return
	}

	out, err := h.service.Login(r.Context(), actorFromRequest(r), input)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, out)
}
