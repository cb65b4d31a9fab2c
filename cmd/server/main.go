// Package main is the entry point for the custody service.
// It loads configuration, wires the ledger and its collaborators,
// and serves the operational HTTP endpoints.
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"custody/internal/app"
	"custody/internal/config"
	"custody/internal/handlers"
	"custody/internal/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 15 * time.Second
)

func main() {
	// Load environment variables
	config.LoadEnv()
	cfg := config.Load()

	zlog, err := logging.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	services, err := app.New(ctx, cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize services", zap.Error(err))
	}

	server := fiber.New(fiber.Config{DisableStartupMessage: cfg.App.Env == "production"})
	server.Use(recover.New())
	server.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	handlers.SetupRoutes(server, handlers.NewHealthHandler(version, healthChecks(services)), services.Registry)

	go func() {
		<-ctx.Done()
		zlog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.ShutdownWithContext(shutdownCtx); err != nil {
			zlog.Warn("http shutdown failed", zap.Error(err))
		}
	}()

	zlog.Info("custody service listening", zap.String("port", cfg.App.Port))
	if err := server.Listen(":" + cfg.App.Port); err != nil && !errors.Is(err, context.Canceled) {
		zlog.Error("http server stopped", zap.Error(err))
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := services.Close(closeCtx); err != nil {
		zlog.Warn("failed to release resources", zap.Error(err))
	}
}

func healthChecks(a *app.App) map[string]handlers.Check {
	checks := map[string]handlers.Check{}
	if a.DB != nil {
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if a.Cache != nil {
		checks["redis"] = a.Cache.HealthCheck
	}
	return checks
}
