package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/connecthub/api/internal/app"
	"github.com/connecthub/api/internal/config"
	"github.com/connecthub/api/internal/infra/http"
	"github.com/connecthub/api/internal/infra/http/routes"
	"github.com/connecthub/api/internal/infra/jobs"
	"github.com/connecthub/api/internal/infra/postgres"
	"github.com/connecthub/api/internal/infra/redis"
	"github.com/connecthub/api/pkg/domain/shared"
	"github.com/connecthub/api/pkg/email"
	"github.com/connecthub/api/pkg/jwt"
	"github.com/connecthub/api/pkg/logger"
	"github.com/connecthub/api/pkg/password"
	"github.com/connecthub/api/pkg/validator"
)

const version = "1.0.0"

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env, "version", version)

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)
	log.Info("redis connected")

	roleCache, err := redis.NewRoleCache(redisClient, 5*time.Minute)
	if err != nil {
		log.Error("failed to initialize role cache", "error", err)
		return 1
	}

	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.AccessTokenDuration)
	if err != nil {
		log.Error("failed to initialize token manager", "error", err)
		return 1
	}

	hasher := password.New(password.WithPolicy(password.Policy{
		MinLength:      cfg.Auth.PasswordMinLength,
		RequireUpper:   cfg.Auth.PasswordRequireUpper,
		RequireLower:   cfg.Auth.PasswordRequireLower,
		RequireNumber:  cfg.Auth.PasswordRequireNumber,
		RequireSpecial: cfg.Auth.PasswordRequireSpecial,
	}))

	jobClient := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}, log)
	defer closeWithLog(jobClient, "job client", log)

	// Repositories.
	userRepo := postgres.NewUserRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	applicationRepo := postgres.NewApplicationRepository(db)
	connectionRepo := postgres.NewConnectionRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	log.Info("repositories initialized")

	// Services.
	v := validator.New()
	auditSvc := app.NewAuditService(auditRepo, jobClient, log)
	userSvc := app.NewUserService(userRepo, hasher, auditSvc, log)
	roleSvc := app.NewRoleService(roleRepo, userRepo, roleCache, auditSvc, log)
	applicationSvc := app.NewApplicationService(applicationRepo, auditSvc, log)
	connectionSvc := app.NewConnectionService(connectionRepo, &app.TCPTester{Timeout: 5 * time.Second}, auditSvc, log)
	authSvc := app.NewAuthService(userRepo, roleRepo, hasher, tokens, auditSvc, log)
	migrationSvc := app.NewMigrationService(
		userRepo, roleRepo, applicationRepo,
		hasher, v, jobClient, auditSvc, log,
		cfg.SMTP.IsConfigured(),
	)
	log.Info("services initialized")

	// Background worker. The email handler stays nil without SMTP
	// configuration; welcome email tasks are then never enqueued either.
	var emailHandler *jobs.EmailTaskHandler
	if cfg.SMTP.IsConfigured() {
		sender := email.NewSender(email.Config{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			User:       cfg.SMTP.User,
			Password:   cfg.SMTP.Password,
			From:       cfg.SMTP.From,
			FromName:   cfg.SMTP.FromName,
			TLS:        cfg.SMTP.TLS,
			SkipVerify: cfg.SMTP.SkipVerify,
			Timeout:    cfg.SMTP.Timeout,
		})
		emailHandler = jobs.NewEmailTaskHandler(sender, cfg.App.Name, cfg.SMTP.BaseURL, log)
		log.Info("email delivery enabled", "host", cfg.SMTP.Host)
	}

	auditHandler := jobs.NewAuditTaskHandler(auditRepo, cfg.Audit.RetentionDays, log)
	workerCfg := jobs.WorkerConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Jobs.Concurrency,
	}
	worker := jobs.NewWorker(workerCfg, emailHandler, auditHandler, log)

	scheduler, err := jobs.NewScheduler(workerCfg, log)
	if err != nil {
		log.Error("failed to initialize scheduler", "error", err)
		return 1
	}

	// HTTP server.
	server := http.NewServer(cfg, log)
	routes.Register(server.Router(), buildHandlers(handlerDeps{
		cfg:            cfg,
		log:            log,
		validator:      v,
		db:             db,
		redis:          redisClient,
		authSvc:        authSvc,
		userSvc:        userSvc,
		roleSvc:        roleSvc,
		applicationSvc: applicationSvc,
		connectionSvc:  connectionSvc,
		migrationSvc:   migrationSvc,
		auditSvc:       auditSvc,
	}), routes.Deps{
		Tokens:       tokens,
		RoleResolver: &cachedRoleResolver{cache: roleCache, roles: roleSvc},
		Logger:       log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return server.Start()
	})
	group.Go(func() error {
		return worker.Run(groupCtx)
	})
	group.Go(func() error {
		if err := scheduler.Start(); err != nil {
			return err
		}
		<-groupCtx.Done()
		scheduler.Shutdown()
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("application started", "http_addr", cfg.Server.Addr())

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Error("application error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

// cachedRoleResolver resolves role names through the Redis cache,
// falling back to the role service on a miss.
type cachedRoleResolver struct {
	cache *redis.RoleCache
	roles *app.RoleService
}

func (r *cachedRoleResolver) RolesForUser(ctx context.Context, userID shared.ID) ([]string, error) {
	return r.cache.GetOrLoad(ctx, userID, func(ctx context.Context) ([]string, error) {
		return r.roles.RoleNamesForUser(ctx, userID)
	})
}

func initLogger(cfg *config.Config) *logger.Logger {
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	log.SetDefault()
	return log
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
