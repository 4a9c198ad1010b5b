// Package routes registers all HTTP routes for the API.
package routes

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	infrahttp "github.com/connecthub/api/internal/infra/http"
	"github.com/connecthub/api/internal/infra/http/handler"
	"github.com/connecthub/api/internal/infra/http/middleware"
	"github.com/connecthub/api/pkg/domain/migration"
	"github.com/connecthub/api/pkg/domain/role"
	"github.com/connecthub/api/pkg/jwt"
	"github.com/connecthub/api/pkg/logger"
)

// Middleware is an alias to the http package's Middleware type.
type Middleware = infrahttp.Middleware

// Router is an alias to the http package's Router interface.
type Router = infrahttp.Router

// Handlers holds all HTTP handlers for route registration.
type Handlers struct {
	Health      *handler.HealthHandler
	Auth        *handler.AuthHandler
	User        *handler.UserHandler
	Role        *handler.RoleHandler
	Application *handler.ApplicationHandler
	Connection  *handler.ConnectionHandler
	Migration   *handler.MigrationHandler
	Audit       *handler.AuditHandler
}

// Deps holds the middleware dependencies shared across route groups.
type Deps struct {
	Tokens       *jwt.Manager
	RoleResolver middleware.RoleResolver
	Logger       *logger.Logger
}

// Register wires every route onto the router. Authorization is declared
// per route group: migration endpoints take admin or platform admin,
// management endpoints take platform admin only.
func Register(r Router, h Handlers, deps Deps) {
	// Unauthenticated surface.
	r.GET("/health", h.Health.Live)
	r.GET("/ready", h.Health.Ready)

	promHandler := promhttp.Handler()
	r.GET("/metrics", func(w http.ResponseWriter, req *http.Request) {
		promHandler.ServeHTTP(w, req)
	})

	auth := middleware.Auth(deps.Tokens, deps.RoleResolver, deps.Logger)
	adminOnly := middleware.RequireRole(role.NameAdmin, role.NamePlatformAdmin)
	platformAdminOnly := middleware.RequireRole(role.NamePlatformAdmin)

	r.Group("/api/v1", func(api Router) {
		api.POST("/auth/login", h.Auth.Login)

		api.Group("/users", func(users Router) {
			users.GET("/", h.User.List)
			users.POST("/", h.User.Create)
			users.POST("/bulk-deactivate", h.User.BulkDeactivate)
			users.GET("/{id}", h.User.Get)
			users.PUT("/{id}", h.User.Update)
			users.DELETE("/{id}", h.User.Delete)
			users.POST("/{id}/suspend", h.User.Suspend)
			users.POST("/{id}/activate", h.User.Activate)
			users.GET("/{id}/roles", h.Role.ListForUser)
		}, auth, adminOnly)

		api.Group("/roles", func(roles Router) {
			roles.GET("/", h.Role.List)
			roles.POST("/", h.Role.Create)
			roles.GET("/{id}", h.Role.Get)
			roles.PUT("/{id}", h.Role.Update)
			roles.DELETE("/{id}", h.Role.Delete)
		}, auth, adminOnly)

		api.Group("/applications", func(apps Router) {
			apps.GET("/", h.Application.List)
			apps.POST("/", h.Application.Create)
			apps.GET("/{id}", h.Application.Get)
			apps.PUT("/{id}", h.Application.Update)
			apps.DELETE("/{id}", h.Application.Delete)
		}, auth, adminOnly)

		api.Group("/connections", func(conns Router) {
			conns.GET("/", h.Connection.List)
			conns.POST("/", h.Connection.Create)
			conns.POST("/test-all", h.Connection.TestAll)
			conns.GET("/{id}", h.Connection.Get)
			conns.PUT("/{id}", h.Connection.Update)
			conns.DELETE("/{id}", h.Connection.Delete)
			conns.POST("/{id}/test", h.Connection.Test)
		}, auth, adminOnly)

		api.Group("/migration", func(mig Router) {
			mig.POST("/validate", h.Migration.Validate)
			mig.POST("/import", h.Migration.Import)
			mig.POST("/users", h.Migration.ImportTyped(migration.TypeUsers))
			mig.POST("/roles", h.Migration.ImportTyped(migration.TypeRoles))
			mig.POST("/applications", h.Migration.ImportTyped(migration.TypeApplications))
			mig.GET("/template/{type}", h.Migration.Template)
		}, auth, adminOnly)

		api.Group("/management", func(mgmt Router) {
			mgmt.POST("/users/assign-roles", h.Role.AssignRoles)
			mgmt.POST("/users/remove-roles", h.Role.RemoveRoles)
			mgmt.POST("/roles/{roleId}/assign-users", h.Role.AssignUsers)
			mgmt.POST("/roles/{roleId}/remove-users", h.Role.RemoveUsers)
		}, auth, platformAdminOnly)

		api.Group("/audit-events", func(audit Router) {
			audit.GET("/", h.Audit.List)
		}, auth, platformAdminOnly)
	})
}
