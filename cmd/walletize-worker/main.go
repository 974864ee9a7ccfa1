package main

import (
	"context"
	"errors"
	"os"
	"time"

	"walletize/internal/amqp"
	"walletize/internal/backend"
	"walletize/internal/cli"
	"walletize/internal/log"
	"walletize/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentWorker)
	logger.Info("Starting walletize-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by the ledger worker")
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid ledger backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).
		CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize ledger backend", "error", err, "backend", backendCfg.Type)
		os.Exit(1)
	}
	if result.Cleanup != nil {
		defer result.Cleanup()
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}

	ledgerWorker := worker.NewLedgerWorker(result.Ledger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		logger.Info("Shutting down worker...")
	})

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- amqpClient.ConsumeTransactionEvents(ctx, ledgerWorker.HandleTransactionEvent)
	}()
	logger.Info("Consuming transaction events",
		"queue", cfg.AMQPQueue,
		"backend", backendCfg.Type)

	select {
	case err := <-consumeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", "error", err)
			amqpClient.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		<-done
		<-consumeErr
	}

	if err := amqpClient.Close(); err != nil {
		logger.Warn("AMQP close error", "error", err)
	}
	logger.Info("Worker shutdown complete")
}
