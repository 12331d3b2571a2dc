package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"dixis-bulk-orders/app"
	"dixis-bulk-orders/config"
	"dixis-bulk-orders/logging"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load .env file in development; in production variables are set directly
	envErr := config.LoadEnvFile(".env")

	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Config{Level: "error", ServiceName: "bulk-orders"}).Error("❌ Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		ServiceName: "bulk-orders",
		Environment: cfg.Environment,
	})
	if envErr != nil && cfg.Environment != "production" {
		logger.Warn("⚠️ .env file not loaded, using system environment variables", "error", envErr)
	}
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.Initialize(ctx, cfg, logger)
	if err != nil {
		logger.Error("❌ Error initializing application", "error", err)
		os.Exit(1)
	}
	application.Start(ctx)

	// Listen on all interfaces so the service is reachable inside containers
	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           application.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("❌ Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("❌ Error shutting down server", "error", err)
	}
	if err := application.Close(); err != nil {
		logger.Error("❌ Error closing application", "error", err)
	}
	logger.Info("✓ Shutdown complete")
}
