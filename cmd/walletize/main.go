package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"walletize/internal/amqp"
	"walletize/internal/cache"
	"walletize/internal/cli"
	apphttp "walletize/internal/http"
	"walletize/internal/log"
	"walletize/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	reportCache := services.NewReportCache(cfg.ReportCacheSize, cfg.ReportCacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(reportCache)
	cacheManager.StartCleanup(cfg.ReportCacheTTL)
	reports := services.NewReportService(repo, reportCache)

	// Events feed the ledger mirror; the API works without them.
	var publisher services.EventPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, transaction events disabled", "error", err)
		} else {
			amqpClient = client
			publisher = client
			logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - ledger mirror will not receive events")
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Transactions: services.NewTransactionService(repo, publisher, reports),
		Reports:      reports,
		Accounts:     services.NewAccountService(repo, reports),
		Categories:   services.NewCategoryService(repo, reports),
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger.WithComponent(log.ComponentHTTP),
		Ready:              repo.Ping,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cacheManager.Stop()
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", "error", err)
			}
		}
		if err := repo.Close(); err != nil {
			logger.Warn("SQLite close error", "error", err)
		}
	})

	logger.Info("Starting walletize server",
		"port", cfg.Port,
		"sqlite_db", cfg.SQLiteDBPath,
		"rate_limit_per_minute", cfg.RateLimitPerMinute)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
