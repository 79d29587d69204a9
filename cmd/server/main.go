// Package main is the entrypoint for the EOEX API server.
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

	"github.com/kiranshivaraju/eoex/internal/api"
	"github.com/kiranshivaraju/eoex/internal/api/handler"
	mw "github.com/kiranshivaraju/eoex/internal/api/middleware"
	"github.com/kiranshivaraju/eoex/internal/api/response"
	"github.com/kiranshivaraju/eoex/internal/auth"
	"github.com/kiranshivaraju/eoex/internal/cache"
	"github.com/kiranshivaraju/eoex/internal/config"
	"github.com/kiranshivaraju/eoex/internal/provision"
	"github.com/kiranshivaraju/eoex/internal/records"
	"github.com/kiranshivaraju/eoex/internal/security"
	"github.com/kiranshivaraju/eoex/internal/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, fail fast on invalid config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "env", cfg.Server.Env, "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected", "pool_size", cfg.Database.PoolSize)

	// 3. Run migrations
	if err := store.RunMigrations(cfg.Database.URL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	// 4. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 5. Create store and services
	exec := store.NewPoolExecutor(pool, cfg.Database.AcquireTimeout)
	pgStore := store.NewPostgresStore(exec)

	tokens, err := security.NewTokenService(security.TokenConfig{
		Secret: cfg.Auth.SecretKey,
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	})
	if err != nil {
		return fmt.Errorf("create token service: %w", err)
	}

	authSvc := auth.NewService(pgStore, tokens, slog.Default())
	provisioner := provision.NewService(pgStore, slog.Default())
	recordSvc := records.NewService(exec, slog.Default())

	// 6. Seed operator accounts
	if cfg.Bootstrap.Enabled {
		if err := provisioner.Bootstrap(ctx, provision.DefaultRoster, cfg.Bootstrap.DefaultPassword); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
		slog.Info("bootstrap complete", "accounts", len(provision.DefaultRoster))
	}

	// 7. Build router with dependencies
	deps := api.Dependencies{
		Auth:        mw.NewAuth(authSvc),
		RateLimit:   mw.NewRateLimit(redisCache, cfg.RateLimit.RequestsPerMinute),
		CORSOrigins: cfg.Server.CORSOrigins,

		HealthHandler:   healthHandler(pgStore, redisCache),
		LoginHandler:    handler.NewLoginHandler(authSvc),
		RegisterHandler: handler.NewRegisterHandler(provisioner),
		MeHandler:       handler.NewMeHandler(),
		OverviewHandler: handler.NewOverviewHandler(recordSvc),
		Records:         recordSvc,
	}

	router := api.NewRouter(deps)

	// 8. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
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

		degraded := checks["database"] != "ok" || checks["cache"] != "ok"
		if degraded {
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
