// Package main is the entry point for the dairyflow API server.
// Multi-tenant architecture: Database-per-Tenant, or a single in-memory demo tenant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"dairyflow/internal/app"
	"dairyflow/internal/config"
	"dairyflow/internal/domain/auth"
	v1 "dairyflow/internal/infrastructure/http/v1"
	"dairyflow/internal/infrastructure/http/v1/handlers"
	"dairyflow/internal/infrastructure/http/v1/middleware"
	"dairyflow/internal/observability/metrics"
	"dairyflow/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger())
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting dairyflow server", "env", cfg.App.Env, "storage", cfg.Storage.Driver)

	metrics.Init()

	rt, err := app.NewRuntime(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize storage", "error", err)
	}
	defer rt.Close()

	// --- Auth ---
	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
	jwtConfig.Issuer = cfg.Auth.Issuer
	jwtConfig.AccessTokenTTL = cfg.Auth.TokenTTL
	jwtService := auth.NewJWTService(jwtConfig)

	var gateway middleware.KeyVerifier
	if cfg.Auth.GatewayKeyHash != "" {
		verifier, err := auth.NewGatewayVerifier(cfg.Auth.GatewayKeyHash)
		if err != nil {
			log.Fatalw("invalid gateway key hash", "error", err)
		}
		gateway = verifier
	} else {
		log.Warn("auth.gateway_key_hash not set, payment callbacks are disabled")
	}

	// --- Router ---
	var health *handlers.HealthHandler
	if rt.Manager != nil {
		health = handlers.NewHealthHandler(cfg.App.Version, rt.Meta, rt.Manager)
	} else {
		health = handlers.NewHealthHandler(cfg.App.Version, nil, nil)
	}

	router := v1.NewRouter(v1.RouterConfig{
		Binder:       rt.Tenants,
		Services:     rt.Services,
		Logger:       log,
		JWTValidator: jwtService,
		Gateway:      gateway,
		Idempotency:  rt.Idempotency,
		Health:       health,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infow("server starting", "address", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
