// Package cli provides the process bootstrap shared by cmd/mileage and
// cmd/claims-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mileage/internal/config"
	"mileage/internal/log"
	"mileage/internal/storage"
)

// SetupLogger builds the process logger for the given level and sets it as
// the slog default. An unknown level falls back to info with a warning.
func SetupLogger(level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	logger := log.New(log.Config{Level: lvl, Component: log.ComponentApp})
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", log.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads a .env file for local development. A missing file is
// not an error.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig reads the environment and runs Validate plus any extra checks.
func LoadConfig(extra ...func(*config.Config) error) (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for _, check := range extra {
		if err := check(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadAndValidateConfig is LoadConfig that exits the process on failure.
func LoadAndValidateConfig(logger *log.Logger, extra ...func(*config.Config) error) *config.Config {
	cfg, err := LoadConfig(extra...)
	if err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite opens the submission archive or exits the process.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath, logger)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. After
// cancellation cleanup runs with a context bounded by timeout; done is
// closed when it returns.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}
		cancel()
		runCleanup(logger, timeout, cleanup)
		close(done)
	}()

	return ctx, done
}

func runCleanup(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) {
	if cleanup == nil {
		logger.Info("Shutdown complete")
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	finished := make(chan struct{})
	go func() {
		cleanup(shutdownCtx)
		close(finished)
	}()

	select {
	case <-finished:
		logger.Info("Shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached")
	}
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
