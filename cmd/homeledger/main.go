package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	appamqp "homeledger/internal/amqp"
	"homeledger/internal/config"
	"homeledger/internal/core"
	"homeledger/internal/feed"
	"homeledger/internal/feed/memory"
	"homeledger/internal/feed/sheets"
	"homeledger/internal/feed/webapp"
	apphttp "homeledger/internal/http"
	"homeledger/internal/ledger"
	applog "homeledger/internal/log"
	"homeledger/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := applog.New(applog.ParseLevel(cfg.LogLevel), "homeledger")
	applog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := core.DefaultRegistry()
	if cfg.AccountsFile != "" {
		loaded, err := core.LoadRegistry(cfg.AccountsFile)
		if err != nil {
			logger.Error("Failed to load accounts file", "error", err, "path", cfg.AccountsFile)
			os.Exit(1)
		}
		reg = loaded
		logger.Info("Loaded account registry", "path", cfg.AccountsFile, "accounts", len(reg.All()))
	}

	var (
		fetcher feed.SnapshotFetcher
		stmts   feed.StatementFetcher
	)
	switch cfg.DataBackend {
	case "webapp":
		cli, err := webapp.New(cfg.WebAppURL)
		if err != nil {
			logger.Error("Failed to initialize web app client", "error", err, "backend", cfg.DataBackend)
			os.Exit(1)
		}
		fetcher, stmts = cli, cli
		logger.Info("Initialized web app backend", "backend", cfg.DataBackend)
	case "sheets":
		cli, err := sheets.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err, "backend", cfg.DataBackend)
			os.Exit(1)
		}
		fetcher, stmts = cli, cli
		logger.Info("Initialized Google Sheets backend", "backend", cfg.DataBackend)
	default:
		store := memory.New(memory.Placeholder(reg))
		fetcher, stmts = store, store
		logger.Info("Initialized memory backend", "backend", cfg.DataBackend)
	}

	var store ledger.SnapshotStore
	if cfg.SQLiteDBPath != "" {
		s, err := storage.NewSnapshotStore(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize snapshot store", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer s.Close()
		store = s
		logger.Info("Snapshot persistence enabled", "path", cfg.SQLiteDBPath)
	}

	lm := ledger.New(ledger.Config{
		Fetcher:    fetcher,
		Statements: stmts,
		Registry:   reg,
		Store:      store,
		Display:    cfg.Display(),
		Logger:     logger.WithComponent("ledger"),
	})

	// Serve persisted data immediately, then fetch fresh in the background.
	lm.Restore(ctx)
	go func() {
		if err := lm.Refresh(ctx); err != nil {
			logger.Warn("Initial refresh failed", "error", err)
		}
	}()

	srv := apphttp.NewServer(":"+cfg.Port, lm)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting homeledger server", "port", cfg.Port, "backend", cfg.DataBackend, "display_currency", cfg.DisplayCurrency)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := lm.Refresh(gctx); err != nil {
					logger.Warn("Periodic refresh failed", "error", err)
				}
			}
		}
	})

	if cfg.AMQPURL != "" {
		amqpClient, err := appamqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		g.Go(func() error {
			err := amqpClient.ConsumeRefresh(gctx, func(msg *appamqp.RefreshMessage) error {
				return lm.Refresh(gctx)
			})
			if err != nil && err != context.Canceled {
				logger.Error("Refresh consumption failed", "error", err)
			}
			return nil
		})
		logger.Info("Listening for refresh messages", "queue", cfg.AMQPQueue)
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-gctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
