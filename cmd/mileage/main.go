package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"mileage/internal/auth"
	"mileage/internal/backend"
	"mileage/internal/cli"
	apphttp "mileage/internal/http"
	"mileage/internal/ledger"
	"mileage/internal/log"
	"mileage/internal/session"
	"mileage/internal/settings"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	store := settings.NewStore(cfg.SettingsFile, logger)
	doc := store.Load()
	logger.Info("Settings loaded",
		log.FieldSettingsPath, store.Path(),
		"company", doc.Business.CompanyName)

	if cfg.UsesDefaultCredentials() {
		logger.Warn("Using the default access username and PIN; set ACCESS_USERNAME and ACCESS_PIN")
	}

	sessions := session.NewStore(session.Config{
		TTL:           cfg.SessionTTL,
		MaxSessions:   cfg.MaxSessions,
		Secure:        cfg.SecureCookie,
		LedgerOptions: []ledger.Option{ledger.WithMaxMiles(cfg.MaxMiles)},
	}, logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid submit backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize submit backend", log.FieldError, err, "backend", cfg.SubmitBackend)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Options{
		Settings:  store,
		Sessions:  sessions,
		Auth:      auth.NewStatic(cfg.AccessUsername, cfg.AccessPIN),
		Submitter: res.Submitter,
		Ready:     res.Ready,
		Logger:    logger,
		MaxMiles:  cfg.MaxMiles,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Close(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting mileage server", "port", cfg.Port, "backend", res.Type.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
