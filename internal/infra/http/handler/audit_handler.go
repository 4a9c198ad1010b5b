package handler

import (
	"net/http"
	"time"

	"github.com/connecthub/api/internal/app"
	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/pagination"
)

// AuditHandler handles audit log queries.
type AuditHandler struct {
	service *app.AuditService
	logger  *logger.Logger
}

// NewAuditHandler creates an audit handler.
func NewAuditHandler(svc *app.AuditService, log *logger.Logger) *AuditHandler {
	return &AuditHandler{service: svc, logger: log}
}

// AuditEventResponse is an audit event in API responses.
type AuditEventResponse struct {
	ID           string         `json:"id"`
	ActorID      string         `json:"actor_id,omitempty"`
	ActorEmail   string         `json:"actor_email,omitempty"`
	ActorIP      string         `json:"actor_ip,omitempty"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	ResourceName string         `json:"resource_name,omitempty"`
	Result       string         `json:"result"`
	Severity     string         `json:"severity"`
	Message      string         `json:"message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

func toAuditEventResponse(e *audit.Event) AuditEventResponse {
	resp := AuditEventResponse{
		ID:           e.ID.String(),
		ActorEmail:   e.Actor.Email,
		ActorIP:      e.Actor.IP,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		ResourceName: e.ResourceName,
		Result:       string(e.Result),
		Severity:     string(e.Severity),
		Message:      e.Message,
		Metadata:     e.Metadata,
		RequestID:    e.Actor.RequestID,
		OccurredAt:   e.OccurredAt,
	}
	if !e.Actor.ID.IsZero() {
		resp.ActorID = e.Actor.ID.String()
	}
	return resp
}

// List handles GET /api/v1/audit-events.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := audit.Filter{
		ActorID:      query.Get("actor_id"),
		Action:       query.Get("action"),
		ResourceType: query.Get("resource_type"),
		Pagination:   parsePagination(r),
	}
	if result := audit.Result(query.Get("result")); result != "" {
		filter.Result = &result
	}
	if severity := audit.Severity(query.Get("severity")); severity != "" {
		filter.Severity = &severity
	}
	if since := query.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			filter.Since = &t
		}
	}
	if until := query.Get("until"); until != "" {
		if t, err := time.Parse(time.RFC3339, until); err == nil {
			filter.Until = &t
		}
	}

	result, err := h.service.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}

	data := make([]AuditEventResponse, 0, len(result.Data))
	for _, e := range result.Data {
		data = append(data, toAuditEventResponse(e))
	}

	respondJSON(w, http.StatusOK, pagination.Result[AuditEventResponse]{
		Data:       data,
		Total:      result.Total,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalPages: result.TotalPages,
	})
}
