package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/armature-app/armature/internal/app"
	"github.com/armature-app/armature/internal/authn"
	"github.com/armature-app/armature/internal/authz"
	"github.com/armature-app/armature/internal/masterdata"
	"github.com/armature-app/armature/internal/observability"
	"github.com/armature-app/armature/internal/platform/cache"
	"github.com/armature-app/armature/internal/platform/db"
	"github.com/armature-app/armature/internal/projects"
	"github.com/armature-app/armature/internal/query"
	"github.com/armature-app/armature/internal/scopeitems"
	"github.com/armature-app/armature/internal/shared"
	"github.com/armature-app/armature/internal/tasks"
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

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The principal cache is best-effort: without Redis every request
	// takes the slow path but nothing is unsafe.
	var principalCache *authn.Cache
	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, running without principal cache", slog.Any("error", err))
	} else {
		principalCache = authn.NewCache(redisClient, cfg.PrincipalTTL)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	resolver := authz.NewResolver(authz.DefaultTable())
	validator := authn.NewValidator(authn.ValidatorConfig{
		Provider:        authn.NewTokenProvider(pool),
		Directory:       authn.NewPGDirectory(pool),
		Resolver:        resolver,
		Cache:           principalCache,
		Logger:          logger,
		Metrics:         metrics,
		ProviderTimeout: cfg.ProviderTimeout,
		RetryBackoff:    cfg.ProviderRetryBackoff,
	})

	denials := shared.NewDenialLogger(pool)
	facade := query.NewFacade(query.NewPGStore(pool), denials, logger).WithMetrics(metrics)

	projectsRepo := projects.NewRepository(pool)
	projectsHandler := projects.NewHandler(logger, projects.NewService(projectsRepo, facade))
	scopeItemsHandler := scopeitems.NewHandler(logger, facade)
	tasksHandler := tasks.NewHandler(logger, facade)
	masterDataHandler := masterdata.NewHandler(logger, facade)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Validator:         validator,
		ProjectsHandler:   projectsHandler,
		ScopeItemsHandler: scopeItemsHandler,
		TasksHandler:      tasksHandler,
		MasterDataHandler: masterDataHandler,
		Metrics:           metrics,
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
