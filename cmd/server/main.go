// Package main is the entrypoint for the errdesk API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiranshivaraju/errdesk/internal/api"
	"github.com/kiranshivaraju/errdesk/internal/api/handler"
	mw "github.com/kiranshivaraju/errdesk/internal/api/middleware"
	"github.com/kiranshivaraju/errdesk/internal/api/response"
	"github.com/kiranshivaraju/errdesk/internal/cache"
	"github.com/kiranshivaraju/errdesk/internal/category"
	"github.com/kiranshivaraju/errdesk/internal/config"
	"github.com/kiranshivaraju/errdesk/internal/intake"
	"github.com/kiranshivaraju/errdesk/internal/store"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel,
	}))
	slog.SetDefault(logger)
	slog.Info("config loaded", "env", cfg.Server.Env, "strict_transitions", cfg.Intake.StrictTransitions)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Database.URL, cfg.Server.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	pgStore := store.NewPostgresStore(pool)

	if cfg.Server.CategorySeedPath != "" {
		cats, err := category.LoadSeed(cfg.Server.CategorySeedPath)
		if err != nil {
			return fmt.Errorf("load category seed: %w", err)
		}
		n, err := category.Seed(ctx, pgStore, cats)
		if err != nil {
			return fmt.Errorf("seed categories: %w", err)
		}
		slog.Info("categories seeded", "count", n, "path", cfg.Server.CategorySeedPath)
	}

	svc := intake.NewService(pgStore,
		intake.WithDefaults(cfg.Intake.DefaultURL, cfg.Intake.DefaultUserAgent),
		intake.WithStrictTransitions(cfg.Intake.StrictTransitions),
		intake.WithCategoryResolver(category.NewLookup(pgStore, redisCache)),
		intake.WithStatsCache(redisCache),
	)

	router := api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(pgStore),
		RateLimit: mw.NewRateLimit(redisCache, cfg.Server.RateLimitPerMin),
		Capturer:  svc,

		HealthHandler: healthHandler(pgStore, redisCache),

		SubmitError:     handler.NewSubmitErrorHandler(svc),
		ListErrors:      handler.NewListErrorsHandler(svc),
		ErrorStats:      handler.NewStatsHandler(svc),
		GetError:        handler.NewGetErrorHandler(svc),
		SetStatus:       handler.NewSetStatusHandler(svc),
		ResolveError:    handler.NewResolveHandler(svc),
		ListResolutions: handler.NewListResolutionsHandler(svc),
		AssignError:     handler.NewAssignHandler(svc),
		DeleteError:     handler.NewDeleteErrorHandler(svc),
		ListCategories:  handler.NewListCategoriesHandler(svc),

		CreateKeyHandler: handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:  handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler: handler.NewRevokeKeyHandler(pgStore),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("server stopped gracefully")
	return nil
}

type pinger interface {
	Ping(ctx context.Context) error
}

// healthHandler checks database and cache connectivity.
func healthHandler(db, c pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}

		if err := db.Ping(r.Context()); err != nil {
			checks["database"] = "degraded"
		}
		if err := c.Ping(r.Context()); err != nil {
			checks["cache"] = "degraded"
		}

		if checks["database"] != "ok" || checks["cache"] != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "DEGRADED",
				"One or more services degraded", checks)
			return
		}

		response.JSON(w, map[string]any{
			"status":   "ok",
			"services": checks,
		})
	}
}
