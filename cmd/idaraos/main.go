package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/stellarsoft-tech/idaraos/internal/app"
	"github.com/stellarsoft-tech/idaraos/internal/assignments"
	"github.com/stellarsoft-tech/idaraos/internal/auth"
	"github.com/stellarsoft-tech/idaraos/internal/catalog"
	"github.com/stellarsoft-tech/idaraos/internal/directory"
	"github.com/stellarsoft-tech/idaraos/internal/observability"
	"github.com/stellarsoft-tech/idaraos/internal/platform/cache"
	"github.com/stellarsoft-tech/idaraos/internal/platform/db"
	"github.com/stellarsoft-tech/idaraos/internal/rbac"
	"github.com/stellarsoft-tech/idaraos/internal/roles"
	"github.com/stellarsoft-tech/idaraos/internal/shared"
	"github.com/stellarsoft-tech/idaraos/internal/users"
	"github.com/stellarsoft-tech/idaraos/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{
		MaxConns:         cfg.PGMaxConns,
		StatementTimeout: cfg.PGStatementTimeout,
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()

	rbacRepo := rbac.NewRepository(pool)
	rbacService := rbac.NewService(rbacRepo, logger, metrics)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, rbacService, sessionManager)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService, rbacMiddleware)

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(rolesRepo)
	rolesHandler := roles.NewHandler(logger, rolesService, rbacMiddleware)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	directoryRepo := directory.NewRepository(pool)
	assignmentsRepo := assignments.NewRepository(pool)
	assignmentsService := assignments.NewService(assignmentsRepo, directoryRepo)
	assignmentsHandler := assignments.NewHandler(logger, assignmentsService, rbacMiddleware)

	jobsClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	directoryService := directory.NewService(directoryRepo, directory.NewSQLProvider(pool), assignmentsService, logger, metrics)
	directoryHandler := directory.NewHandler(logger, directoryService, jobsClient, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		AuthHandler:        authHandler,
		CatalogHandler:     catalogHandler,
		RolesHandler:       rolesHandler,
		UsersHandler:       usersHandler,
		AssignmentsHandler: assignmentsHandler,
		DirectoryHandler:   directoryHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
