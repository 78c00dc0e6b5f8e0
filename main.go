package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/terrasurvey-io/terrasurvey-auth/pkg/auth"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/central"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/config"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/database"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/handlers"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/middleware"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/repositories"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/retry"
	"github.com/terrasurvey-io/terrasurvey-auth/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialise logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("database", cfg.Mongo.Database),
		zap.String("central_url", cfg.Central.URL))

	ctx := context.Background()

	// The database often comes up after this service in a compose stack, so
	// keep retrying the initial connection.
	db, err := retry.DoWithResult(ctx, &retry.Config{
		MaxRetries:   10,
		InitialDelay: 5 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   1.5,
		JitterFactor: 0.1,
	}, func() (*database.DB, error) {
		return database.Connect(ctx, &database.Config{
			URI:            cfg.Mongo.URI,
			Database:       cfg.Mongo.Database,
			ConnectTimeout: cfg.Mongo.ConnectTimeout(),
		})
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(ctx); err != nil {
			logger.Warn("Failed to close database connection", zap.Error(err))
		}
	}()

	if err := db.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to ensure indexes", zap.Error(err))
	}

	userRepo := repositories.NewUserRepository(db)
	projectRepo := repositories.NewProjectRepository(db)
	formRepo := repositories.NewFormRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	gateway := central.NewClient(cfg.Central.URL, cfg.Central.Email, cfg.Central.Password, logger)

	issuer := auth.NewIssuer(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL())
	authMiddleware := auth.NewMiddleware(issuer, logger)

	auditService := services.NewAuditService(auditRepo, logger)
	authService := services.NewAuthService(userRepo, issuer, auditService, logger)
	roleService := services.NewRoleService(userRepo, projectRepo, formRepo, auditService, logger)
	adminService := services.NewAdminService(userRepo, projectRepo, formRepo, auditService,
		cfg.Admin.Email, cfg.Admin.Password, logger)
	formService := services.NewFormService(projectRepo, formRepo, userRepo, gateway, adminService,
		auditService, cfg.Central.URL, logger)
	metadataService := services.NewMetadataService(userRepo, projectRepo, formRepo, gateway, logger)

	if err := adminService.Bootstrap(ctx); err != nil {
		logger.Fatal("Failed to bootstrap administrator", zap.Error(err))
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewUsersHandler(authService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewRolesHandler(roleService, adminService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewFormsHandler(formService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewMetadataHandler(metadataService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewAuditHandler(auditService, logger).RegisterRoutes(mux, authMiddleware)

	var handler http.Handler = mux
	handler = middleware.BodyLimit(cfg.MaxBodyBytes)(handler)
	handler = middleware.CORS(handler)
	handler = middleware.RequestLogger(logger)(handler)

	addr := fmt.Sprintf("%s:%s", cfg.BindAddr, cfg.Port)
	logger.Info("Starting terrasurvey-auth", zap.String("addr", addr), zap.String("version", cfg.Version))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsLocal() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
