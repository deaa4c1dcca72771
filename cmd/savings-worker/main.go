package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"savingsbuddy/internal/amqp"
	"savingsbuddy/internal/cli"
	"savingsbuddy/internal/config"
	applog "savingsbuddy/internal/log"
	gsheet "savingsbuddy/internal/sheets/google"
	"savingsbuddy/internal/worker"
)

const (
	amqpConnectAttempts = 10
	startupSyncTimeout  = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWorker)
	logger.Info("Starting savings-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	sheetsClient, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.Connect(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqpConnectAttempts)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(repo, sheetsClient, cfg.SyncConcurrency)

	// Catch up on anything published while the worker was down.
	syncCtx, cancel := context.WithTimeout(ctx, startupSyncTimeout)
	if err := mirror.SyncAll(syncCtx); err != nil {
		logger.Error("Startup sync failed", applog.FieldError, err)
	}
	cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeRecordEvents(gctx, mirror.HandleRecordEvent)
	})
	g.Go(func() error {
		return mirror.Run(gctx, cfg.SyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}
