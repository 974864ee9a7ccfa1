package main

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"

	"walletize/internal/adapters"
	"walletize/internal/cli"
	"walletize/internal/log"
	"walletize/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentRates)
	logger.Info("Starting rates-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var source services.RatesSource
	if cfg.RatesAPIKey != "" {
		source = adapters.NewRatesFeed(cfg.RatesAPIURL, cfg.RatesAPIKey)
	} else {
		logger.Warn("RATES_API_KEY not set, refreshes will keep the seeded rates")
	}
	// The API keeps its own report cache; entries age out within REPORT_CACHE_TTL.
	refresher := services.NewRatesRefresher(repo, source, nil)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if cfg.RatesRefreshOnStart {
		logger.Info("Running initial rate refresh...")
		refresher.Refresh(ctx)
	}

	cl := cronLogger{logger}
	scheduler := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	_, err := scheduler.AddFunc(cfg.RatesRefreshSchedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		refresher.Refresh(runCtx)
	})
	if err != nil {
		logger.Error("Invalid rates refresh schedule", "error", err, "schedule", cfg.RatesRefreshSchedule)
		os.Exit(1)
	}
	scheduler.Start()
	logger.Info("Rate refresh scheduled", "schedule", cfg.RatesRefreshSchedule)

	cli.WaitForShutdown(ctx, done)

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
		logger.Info("Rates-worker shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("Rate refresh still running at shutdown")
	}
}

// cronLogger routes scheduler logs through the process logger.
type cronLogger struct {
	*log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Logger.Error(msg, append(keysAndValues, "error", err)...)
}
