// Package cli provides the startup steps shared by cmd/pfm and cmd/pfm-adduser.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"pfm/internal/config"
	"pfm/internal/ledger"
	"pfm/internal/ledger/memory"
	"pfm/internal/log"
	"pfm/internal/storage"
)

// SetupLogger builds the process logger from cfg and installs it as the
// slog default.
func SetupLogger(cfg *config.Config) *log.Logger {
	logger := log.New(log.Config{
		Level:  log.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// A missing file is not an error.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadAndValidateConfig reads the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenStore opens the backend selected by cfg.DataBackend. SQL backends run
// their migrations before returning.
func OpenStore(cfg *config.Config, logger *log.Logger) (ledger.Store, error) {
	logger = logger.WithComponent(log.ComponentStorage)
	switch cfg.DataBackend {
	case config.BackendMemory:
		logger.Warn("Using in-memory backend; data is lost on exit")
		return memory.New(cfg.LockTimeout), nil
	case config.BackendSQLite:
		s, err := storage.NewSQLiteStore(cfg.SQLiteDBPath, cfg.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLiteDBPath, err)
		}
		logger.Info("SQLite backend ready", "path", cfg.SQLiteDBPath)
		return s, nil
	case config.BackendPostgres:
		s, err := storage.NewPostgresStore(cfg.DatabaseURL, cfg.LockTimeout)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		logger.Info("Postgres backend ready")
		return s, nil
	}
	return nil, fmt.Errorf("unknown data backend %q", cfg.DataBackend)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	}()
	return ctx, stop
}
