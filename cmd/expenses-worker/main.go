package main

import (
	"context"
	"os"

	"expenses/internal/cli"
	"expenses/internal/config"
	"expenses/internal/log"
	ports "expenses/internal/sheets"
	gsheet "expenses/internal/sheets/google"
	memsheets "expenses/internal/sheets/memory"
	"expenses/internal/worker"
)

func main() {
	cfg, logger := cli.MustLoad(log.ComponentWorker)
	logger.Info("Starting expenses-worker")

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	store, err := cli.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize storage", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close storage", log.FieldError, err.Error())
		}
	}()

	writer, err := newWriter(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
		os.Exit(1)
	}

	var consumer worker.Consumer
	amqpClient, err := cli.ConnectAMQP(cfg, logger)
	if err != nil {
		logger.Warn("Continuing with periodic sync only", log.FieldError, err.Error())
	}
	if amqpClient != nil {
		defer amqpClient.Close()
		consumer = amqpClient
	}

	syncWorker := worker.NewSyncWorker(store.Store, writer, worker.Config{
		BatchSize:   cfg.SyncBatchSize,
		MaxAttempts: cfg.SyncMaxAttempts,
		Interval:    cfg.SyncInterval,
	}, logger)

	// pick up anything recorded while the worker was down
	logger.Info("Performing startup sync check...")
	if _, err := syncWorker.StartupSync(ctx); err != nil {
		logger.Error("Failed startup sync check", log.FieldError, err.Error())
	}

	if err := syncWorker.Run(ctx, consumer); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

func newWriter(ctx context.Context, cfg *config.Config, logger *log.Logger) (ports.ExpenseWriter, error) {
	if !cfg.SheetsEnabled() {
		logger.Warn("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided, mirroring in memory")
		return memsheets.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		SheetName:          cfg.GoogleSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}
