package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger checks the liveness of a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	db      Pinger
	cache   Pinger
	version string
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(db, cache Pinger, version string) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, version: version}
}

// Live handles GET /health. It reports process liveness only.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready handles GET /ready. It verifies the backing stores respond.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{
		"database": "ok",
		"redis":    "ok",
	}
	healthy := true

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if err := h.cache.Ping(ctx); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	overall := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	respondJSON(w, status, map[string]any{
		"status": overall,
		"checks": checks,
	})
}
