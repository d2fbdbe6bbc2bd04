package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"upkeep/internal/amqp"
	"upkeep/internal/cli"
	gsheet "upkeep/internal/sheets/google"
	"upkeep/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	logger.Info("Starting upkeep-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	if cfg.GoogleSpreadsheetID == "" {
		logger.Error("Mirror worker requires GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sheetsClient, err := gsheet.NewFromEnv(context.Background())
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirrorWorker := worker.NewMirrorWorker(repo, sheetsClient, cfg.MirrorBatchSize)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Mirror anything committed while the worker was down.
	if err := mirrorWorker.ProcessUnmirrored(ctx); err != nil {
		logger.Error("Startup reconcile failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			err := amqpClient.ConsumeClosings(gctx, func(msg *amqp.ClosingCommittedMessage) error {
				return mirrorWorker.HandleClosingMessage(gctx, msg)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}

			// The broker dropped us; reconnect with backoff and resume.
			logger.Warn("Consume stopped, reconnecting", "error", err)
			if err := amqpClient.Reconnect(gctx, 10); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.MirrorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := mirrorWorker.ProcessUnmirrored(gctx); err != nil {
					logger.Error("Periodic reconcile failed", "error", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
