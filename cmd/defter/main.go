package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"defter/internal/amqp"
	"defter/internal/config"
	apphttp "defter/internal/http"
	"defter/internal/rates"
	"defter/internal/services"
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

	rateStore := rates.NewStore(repo)
	rateService := rates.NewService(rateStore,
		rates.NewFrankfurter(cfg.RatesPrimaryURL),
		rates.NewExchangeRateHost(cfg.RatesSecondaryURL))

	// AMQP change fanout is optional; without it the server still works,
	// it just never hears about writes from other sessions.
	var amqpClient *amqp.Client
	var publisher services.ChangePublisher
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqpClient
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	ledger := services.NewLedgerService(repo, rateStore, publisher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Refresh rates on startup: one retry, then proceed with whatever the
	// settings already hold.
	go func() {
		if err := rateService.RefreshWithRetry(ctx, ""); err != nil {
			logger.Error("Startup rate refresh failed, using stored rates", "error", err)
		}
	}()

	// Replay changes from other sessions into the local notifier so the
	// report caches drop stale data.
	if amqpClient != nil {
		go func() {
			err := amqpClient.ConsumeChanges(ctx, func(c storage.Change) error {
				repo.Notifier().Advance(c)
				return nil
			})
			if err != nil && err != context.Canceled {
				logger.Error("Change consumption stopped", "error", err)
			}
		}()
	}

	srv := apphttp.NewServer(":"+cfg.Port, ledger, rateStore, rateService, repo.Notifier())

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting defter server", "port", cfg.Port, "db", cfg.SQLiteDBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
