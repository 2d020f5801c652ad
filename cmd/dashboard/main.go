package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wolfman30/wellness-dashboard/internal/app/bootstrap"
	appconfig "github.com/wolfman30/wellness-dashboard/internal/config"
	"github.com/wolfman30/wellness-dashboard/pkg/logging"
)

func main() {
	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting wellness dashboard",
		"env", cfg.Env,
		"port", cfg.Port,
		"backend_url", cfg.BackendURL,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dashboard, err := bootstrap.BuildDashboard(ctx, cfg, logger, bootstrap.Options{})
	if err != nil {
		logger.Error("failed to build dashboard", "error", err)
		os.Exit(1)
	}
	dashboard.Warm(ctx)
	dashboard.Start(ctx)

	// Create HTTP server. WriteTimeout stays zero so status streams are not cut.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           dashboard.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("server error", "error", err)
	}

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := dashboard.Close(); err != nil {
		logger.Warn("dashboard close", "error", err)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
