package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eshaffer321/ledgermatch/internal/api"
	"github.com/eshaffer321/ledgermatch/internal/application/service"
	"github.com/eshaffer321/ledgermatch/internal/infrastructure/config"
	"github.com/eshaffer321/ledgermatch/internal/infrastructure/logging"
	"github.com/eshaffer321/ledgermatch/internal/infrastructure/storage"
)

// RunServe runs the API server until SIGINT or SIGTERM.
// An empty database path serves without run history.
func RunServe(cfg *config.Config, flags *ServeFlags) error {
	// Set up logging
	logger := logging.NewLoggerWithSystem(loggingConfig(cfg, flags.Verbose), "api")

	settings, err := cfg.Matching.Settings()
	if err != nil {
		return err
	}

	// Initialize storage
	var repo storage.Repository
	if cfg.Storage.DatabasePath != "" {
		store, err := storage.NewStorage(cfg.Storage.DatabasePath, logger.With("system", "storage"))
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		repo = store
	} else {
		logger.Warn("no database path configured, run history disabled")
	}

	svc, err := service.NewReconcileService(settings, repo, logger.With("system", "service"),
		service.WithRunTimeout(cfg.Server.RunTimeout))
	if err != nil {
		return err
	}

	// Create API config
	apiCfg := api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RunTimeout:     cfg.Server.RunTimeout,
	}
	if flags.Port > 0 {
		apiCfg.Port = flags.Port
	}

	// Create and start server
	server := api.NewServer(apiCfg, svc, logger)

	// Handle graceful shutdown
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("received shutdown signal")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Error("server shutdown error", slog.Any("error", err))
		}
		close(done)
	}()

	// Start server (blocks until shutdown)
	if err := server.Start(); err != nil {
		return err
	}

	<-done
	logger.Info("server stopped")
	return nil
}
