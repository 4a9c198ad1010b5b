// Package app holds the application services that implement the
// business operations behind the HTTP handlers.
package app

import (
	"context"

	"github.com/connecthub/api/pkg/domain/audit"
	"github.com/connecthub/api/pkg/domain/shared"
)

// Dispatcher hands work to the background job queue. Side effects like
// audit persistence and welcome emails go through here after the
// primary operation commits, so a queue failure can never roll back or
// fail the operation that produced them.
type Dispatcher interface {
	EnqueueWelcomeEmail(ctx context.Context, email, fullName, username string) error
	EnqueueAuditEvent(ctx context.Context, e *audit.Event) error
}

// RoleCacheInvalidator drops cached per-user role sets after an
// assignment mutation.
type RoleCacheInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...shared.ID) error
}

// BulkError describes one failed item in a bulk operation.
type BulkError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// BulkResult aggregates per-item outcomes of a bulk operation. Each
// item succeeds or fails independently.
type BulkResult struct {
	Total     int         `json:"total"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []BulkError `json:"errors"`
}

// NewBulkResult creates a result for a bulk operation of the given size.
func NewBulkResult(total int) *BulkResult {
	return &BulkResult{Total: total, Errors: make([]BulkError, 0)}
}

// RecordSuccess counts one successful item.
func (r *BulkResult) RecordSuccess() {
	r.Succeeded++
}

// RecordFailure counts one failed item and captures its error.
func (r *BulkResult) RecordFailure(id, message string) {
	r.Failed++
	r.Errors = append(r.Errors, BulkError{ID: id, Message: message})
}

// Success reports whether every item succeeded.
func (r *BulkResult) Success() bool {
	return r.Failed == 0
}
