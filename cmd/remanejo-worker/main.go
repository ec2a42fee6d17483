package main

import (
	"context"
	"errors"
	"os"
	"time"

	"remanejo/internal/amqp"
	"remanejo/internal/cli"
	"remanejo/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), nil)
	logger.Info("Starting remanejo-worker")

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required by the worker")
		os.Exit(1)
	}
	rules, err := cfg.Rules()
	if err != nil {
		logger.Error("Invalid reallocation rules", "error", err)
		os.Exit(1)
	}

	factory, backend, err := cli.Backend(context.Background(), logger, cfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err)
		os.Exit(1)
	}

	consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, cfg.AMQPEventsQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		_ = backend.Cleanup()
		os.Exit(1)
	}

	runWorker := worker.NewRunWorker(backend.Service, factory, rules, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		if err := consumer.Close(); err != nil {
			logger.Error("AMQP close error", "error", err)
		}
		if err := backend.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", "error", err)
		}
	})

	logger.Info("Consuming run requests", "queue", cfg.AMQPQueue, "exchange", cfg.AMQPExchange)
	if err := runWorker.Run(ctx, consumer); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		_ = consumer.Close()
		_ = backend.Cleanup()
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped gracefully")
}
