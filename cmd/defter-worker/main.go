package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"defter/internal/config"
	"defter/internal/rates"
	"defter/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting defter-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	rateService := rates.NewService(rates.NewStore(repo),
		rates.NewFrankfurter(cfg.RatesPrimaryURL),
		rates.NewExchangeRateHost(cfg.RatesSecondaryURL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First refresh right away so a fresh database gets rates without
	// waiting a full interval.
	if err := rateService.RefreshWithRetry(ctx, ""); err != nil {
		logger.Error("Initial rate refresh failed", "error", err)
	}

	scheduler := cron.New()
	_, err = scheduler.AddFunc("@every "+cfg.RefreshInterval.String(), func() {
		if err := rateService.Refresh(ctx, ""); err != nil {
			logger.Error("Scheduled rate refresh failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("Failed to schedule rate refresh", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("Rate refresh scheduled", "interval", cfg.RefreshInterval.String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	// Let an in-flight refresh finish before exiting.
	<-scheduler.Stop().Done()
	cancel()
	logger.Info("Worker stopped gracefully")
}
