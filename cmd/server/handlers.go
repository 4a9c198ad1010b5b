package main

import (
	"github.com/connecthub/api/internal/app"
	"github.com/connecthub/api/internal/config"
	"github.com/connecthub/api/internal/infra/http/handler"
	"github.com/connecthub/api/internal/infra/http/routes"
	"github.com/connecthub/api/internal/infra/postgres"
	"github.com/connecthub/api/internal/infra/redis"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/validator"
)

type handlerDeps struct {
	cfg       *config.Config
	log       *logger.Logger
	validator *validator.Validator
	db        *postgres.DB
	redis     *redis.Client

	authSvc        *app.AuthService
	userSvc        *app.UserService
	roleSvc        *app.RoleService
	applicationSvc *app.ApplicationService
	connectionSvc  *app.ConnectionService
	migrationSvc   *app.MigrationService
	auditSvc       *app.AuditService
}

func buildHandlers(d handlerDeps) routes.Handlers {
	return routes.Handlers{
		Health:      handler.NewHealthHandler(d.db, d.redis, version),
		Auth:        handler.NewAuthHandler(d.authSvc, d.validator, d.log),
		User:        handler.NewUserHandler(d.userSvc, d.validator, d.log),
		Role:        handler.NewRoleHandler(d.roleSvc, d.validator, d.log),
		Application: handler.NewApplicationHandler(d.applicationSvc, d.validator, d.log),
		Connection:  handler.NewConnectionHandler(d.connectionSvc, d.validator, d.log),
		Migration:   handler.NewMigrationHandler(d.migrationSvc, d.validator, d.log),
		Audit:       handler.NewAuditHandler(d.auditSvc, d.log),
	}
}
