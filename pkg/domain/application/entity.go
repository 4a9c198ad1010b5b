// Package application defines registered applications.
package application

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/connecthub/api/pkg/domain/shared"
)

// Application is a registered client application. Name is unique.
type Application struct {
	id          shared.ID
	name        string
	description string
	url         string
	ownerEmail  string
	enabled     bool
	createdAt   time.Time
	updatedAt   time.Time
}

// New creates an enabled application.
func New(name, description, rawURL, ownerEmail string) (*Application, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: application name is required", shared.ErrValidation)
	}
	if len(name) > 128 {
		return nil, fmt.Errorf("%w: application name must be at most 128 characters", shared.ErrValidation)
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL != "" {
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return nil, fmt.Errorf("%w: invalid application URL", shared.ErrValidation)
		}
	}

	now := time.Now().UTC()
	return &Application{
		id:          shared.NewID(),
		name:        name,
		description: strings.TrimSpace(description),
		url:         rawURL,
		ownerEmail:  strings.ToLower(strings.TrimSpace(ownerEmail)),
		enabled:     true,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// Reconstitute rebuilds an application from stored state.
func Reconstitute(id shared.ID, name, description, rawURL, ownerEmail string, enabled bool, createdAt, updatedAt time.Time) *Application {
	return &Application{
		id:          id,
		name:        name,
		description: description,
		url:         rawURL,
		ownerEmail:  ownerEmail,
		enabled:     enabled,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (a *Application) ID() shared.ID        { return a.id }
func (a *Application) Name() string         { return a.name }
func (a *Application) Description() string  { return a.description }
func (a *Application) URL() string          { return a.url }
func (a *Application) OwnerEmail() string   { return a.ownerEmail }
func (a *Application) IsEnabled() bool      { return a.enabled }
func (a *Application) CreatedAt() time.Time { return a.createdAt }
func (a *Application) UpdatedAt() time.Time { return a.updatedAt }

// Update changes the mutable fields.
func (a *Application) Update(description, rawURL, ownerEmail string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL != "" {
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("%w: invalid application URL", shared.ErrValidation)
		}
	}
	a.description = strings.TrimSpace(description)
	a.url = rawURL
	a.ownerEmail = strings.ToLower(strings.TrimSpace(ownerEmail))
	a.updatedAt = time.Now().UTC()
	return nil
}

// Enable activates the application.
func (a *Application) Enable() {
	a.enabled = true
	a.updatedAt = time.Now().UTC()
}

// Disable deactivates the application.
func (a *Application) Disable() {
	a.enabled = false
	a.updatedAt = time.Now().UTC()
}
