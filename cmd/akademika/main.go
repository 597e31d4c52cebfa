package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/akademika-id/akademika/internal/app"
	"github.com/akademika-id/akademika/internal/auth"
	"github.com/akademika-id/akademika/internal/groups"
	"github.com/akademika-id/akademika/internal/observability"
	"github.com/akademika-id/akademika/internal/platform/cache"
	"github.com/akademika-id/akademika/internal/platform/db"
	"github.com/akademika-id/akademika/internal/rbac"
	"github.com/akademika-id/akademika/internal/roles"
	"github.com/akademika-id/akademika/internal/users"
	"github.com/akademika-id/akademika/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()

	tokenIssuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL())
	lockout := auth.NewLockout(redisClient, cfg.LoginMaxFailures, cfg.LoginFailureWindow)
	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, tokenIssuer, lockout, logger, metrics, cfg.CaptureClients)
	authHandler := auth.NewHandler(logger, authService)

	rbacRepo := rbac.NewRepository(dbpool)
	rbacService := rbac.NewService(rbacRepo, logger)
	gate := rbac.Middleware{
		Verifier: tokenIssuer,
		Loader:   authService,
		Service:  rbacService,
		Logger:   logger,
		Metrics:  metrics,
	}
	permissionsHandler := rbac.NewPermissionsHandler(rbacService, logger)

	usersHandler := users.NewHandler(logger, users.NewService(users.NewRepository(dbpool)), gate)
	rolesHandler := roles.NewHandler(logger, roles.NewService(roles.NewRepository(dbpool)), gate)
	groupsHandler := groups.NewHandler(logger, groups.NewService(groups.NewRepository(dbpool)), gate)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		GroupsHandler:      groupsHandler,
		PermissionsHandler: permissionsHandler,
		JobsHandler:        jobsHandler,
		Gate:               gate,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
