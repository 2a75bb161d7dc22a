package main

import (
	"context"
	"errors"
	"os"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	mem "fintrack/internal/sheets/memory"
	"fintrack/internal/worker"
)

const memoryJournalLimit = 1000

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentWorker)

	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	journal, err := openJournal(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize journal", log.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldComponent, log.ComponentAMQP, log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewJournalWorker(repo, journal)

	logger.Info("Consuming transaction events", "queue", cfg.AMQPQueue, log.FieldOperation, log.OpStartup)
	if err := client.Consume(ctx, w.HandleEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete")
}

// openJournal prefers Google Sheets and falls back to an in-memory journal
// that only logs entries.
func openJournal(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.JournalWriter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled, journaling to memory", log.FieldComponent, log.ComponentSheets)
		return mem.New(memoryJournalLimit), nil
	}
	j, err := gsheet.NewJournal(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, gsheet.Credentials{
		JSON: cfg.GoogleServiceAccountJSON,
		File: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("Journaling to Google Sheets",
		log.FieldComponent, log.ComponentSheets,
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleSheetName)
	return j, nil
}
