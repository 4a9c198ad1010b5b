// Package audit defines audit log events.
package audit

import (
	"time"

	"github.com/connecthub/api/pkg/domain/shared"
)

// Result classifies how the audited operation ended.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultDenied  Result = "denied"
)

// Severity grades an event for filtering and alerting.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Actor is the request-scoped identity an event is attributed to. It is
// built once at the HTTP boundary and passed explicitly into services;
// nothing reads ambient request state.
type Actor struct {
	ID        shared.ID
	Email     string
	IP        string
	UserAgent string
	RequestID string
}

// Event is a single audit log entry.
type Event struct {
	ID           shared.ID      `json:"id"`
	Actor        Actor          `json:"actor"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	ResourceName string         `json:"resource_name,omitempty"`
	Result       Result         `json:"result"`
	Severity     Severity       `json:"severity"`
	Message      string         `json:"message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

func newEvent(actor Actor, action, resourceType, resourceID string, result Result) *Event {
	return &Event{
		ID:           shared.NewID(),
		Actor:        actor,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Result:       result,
		Severity:     SeverityInfo,
		OccurredAt:   time.Now().UTC(),
	}
}

// NewSuccessEvent starts a successful event.
func NewSuccessEvent(actor Actor, action, resourceType, resourceID string) *Event {
	return newEvent(actor, action, resourceType, resourceID, ResultSuccess)
}

// NewFailureEvent starts a failed event.
func NewFailureEvent(actor Actor, action, resourceType, resourceID string) *Event {
	e := newEvent(actor, action, resourceType, resourceID, ResultFailure)
	e.Severity = SeverityWarning
	return e
}

// NewDeniedEvent starts an authorization-denied event.
func NewDeniedEvent(actor Actor, action, resourceType, resourceID string) *Event {
	e := newEvent(actor, action, resourceType, resourceID, ResultDenied)
	e.Severity = SeverityWarning
	return e
}

// WithResourceName attaches a human-readable resource name.
func (e *Event) WithResourceName(name string) *Event {
	e.ResourceName = name
	return e
}

// WithMessage attaches a free-form message.
func (e *Event) WithMessage(msg string) *Event {
	e.Message = msg
	return e
}

// WithSeverity overrides the default severity.
func (e *Event) WithSeverity(s Severity) *Event {
	e.Severity = s
	return e
}

// WithMetadata attaches structured metadata.
func (e *Event) WithMetadata(md map[string]any) *Event {
	e.Metadata = md
	return e
}
