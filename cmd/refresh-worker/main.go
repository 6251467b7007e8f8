// The refresh worker polls the upstream spreadsheet on an interval, persists
// each good snapshot, and publishes a refresh message so running dashboard
// servers pull fresh data without waiting for their own poll.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	appamqp "homeledger/internal/amqp"
	"homeledger/internal/config"
	"homeledger/internal/feed"
	"homeledger/internal/feed/sheets"
	"homeledger/internal/feed/webapp"
	applog "homeledger/internal/log"
	"homeledger/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.ParseLevel(cfg.LogLevel), "refresh-worker")
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the refresh worker")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fetcher feed.SnapshotFetcher
	switch cfg.DataBackend {
	case "sheets":
		cli, err := sheets.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		fetcher = cli
	default:
		cli, err := webapp.New(cfg.WebAppURL)
		if err != nil {
			logger.Error("Failed to initialize web app client", "error", err)
			os.Exit(1)
		}
		fetcher = cli
	}

	store, err := storage.NewSnapshotStore(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize snapshot store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	amqpClient, err := appamqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	poll := func(reason string) {
		b, err := fetcher.FetchAll(ctx)
		if err != nil {
			logger.Warn("Upstream fetch failed", "error", err, "reason", reason)
			return
		}
		if err := store.Save(ctx, b); err != nil {
			logger.Warn("Snapshot persistence failed", "error", err)
		}
		if err := amqpClient.PublishRefresh(ctx, reason, cfg.DataBackend); err != nil {
			logger.Warn("Publish refresh failed", "error", err)
			return
		}
		logger.Info("Snapshot refreshed and announced",
			"reason", reason,
			"accounts", len(b.Accounts),
			"transactions", len(b.Transactions))
	}

	logger.Info("Starting refresh worker",
		"backend", cfg.DataBackend,
		"interval", cfg.RefreshInterval,
		"queue", cfg.AMQPQueue)
	poll("startup")

	ticker := time.NewTicker(cfg.RefreshInterval)
	defer ticker.Stop()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			poll("interval")
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
