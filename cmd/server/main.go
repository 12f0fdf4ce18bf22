// Package main is the entry point of the dealwatch server: the HTTP API that
// the chat front-end calls, plus the scheduler that re-checks prices in the
// background.
//
// main only wires things together. It builds every dependency once, starts
// the HTTP server and the scheduler side by side, and on SIGINT/SIGTERM
// lets both drain before closing the store.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/dealwatch/internal/auth"
	"github.com/sakif/dealwatch/internal/config"
	"github.com/sakif/dealwatch/internal/extractor"
	"github.com/sakif/dealwatch/internal/notify"
	sqliteRepo "github.com/sakif/dealwatch/internal/repository/sqlite"
	"github.com/sakif/dealwatch/internal/scheduler"
	"github.com/sakif/dealwatch/internal/server"
	"github.com/sakif/dealwatch/internal/service"
)

func main() {
	// === 1. CONFIGURATION ===
	// Loaded before the logger exists, so failures go to a default logger.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. LOGGING ===
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if cfg.PremiumInterval >= cfg.StandardInterval {
		logger.Warn("premium products are not checked more often than standard ones",
			slog.Duration("premium_interval", cfg.PremiumInterval),
			slog.Duration("standard_interval", cfg.StandardInterval),
		)
	}

	// === 3. DATABASE ===
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return err
	}
	db, err := sqliteRepo.New(cfg.DBPath, sqliteRepo.WithQuota(cfg.DefaultMaxProducts, cfg.ReferralBonus))
	if err != nil {
		return err
	}
	// Deferred first so it runs last, after the server and scheduler stopped.
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("closing database", slog.String("error", err.Error()))
		}
	}()

	// === 4. SCRAPING ===
	registry := cfg.Registry()
	fetcher := extractor.NewCollyFetcher(extractor.FetchConfig{
		Timeout:   cfg.RequestTimeout,
		UserAgent: cfg.UserAgent,
	})
	scraper := extractor.NewScraper(fetcher, extractor.New(registry), cfg.RequestTimeout)

	// === 5. NOTIFICATIONS ===
	var notifier notify.Notifier
	switch cfg.Notifier {
	case config.NotifierAMQP:
		amqpNotifier, err := notify.NewAMQPNotifier(notify.AMQPConfig{
			URL:   cfg.RabbitMQURL,
			Queue: cfg.NotifyQueue,
		}, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := amqpNotifier.Close(); err != nil {
				logger.Warn("closing notifier", slog.String("error", err.Error()))
			}
		}()
		notifier = amqpNotifier
	default:
		notifier = notify.NewLogNotifier(logger)
	}

	// === 6. SERVICES ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return err
	}
	tracking := service.NewTrackingService(db, registry, scraper, logger)
	sched := scheduler.New(db, scraper, notifier, scheduler.Config{
		StandardInterval: cfg.StandardInterval,
		PremiumInterval:  cfg.PremiumInterval,
		ItemTimeout:      3 * cfg.RequestTimeout,
		Concurrency:      cfg.CheckConcurrency,
	}, logger)
	srv := server.New(server.Config{
		Port:         cfg.Port,
		WriteTimeout: cfg.RequestTimeout + server.ShutdownTimeout,
	}, tracking, tokens, logger)

	// === 7. RUN UNTIL SIGNALLED ===
	// The first of the two to fail cancels ctx, which stops the other.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(ctx) })
	g.Go(func() error { return sched.Run(ctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("dealwatch stopped")
	return err
}
