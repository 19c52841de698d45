package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"

	"github.com/jitterskin/logger/internal/config"
	"github.com/jitterskin/logger/internal/feature/owner"
	"github.com/jitterskin/logger/internal/feature/subscription"
	"github.com/jitterskin/logger/internal/feature/tracker"
	"github.com/jitterskin/logger/internal/feature/user"
	"github.com/jitterskin/logger/internal/feature/visit"
	"github.com/jitterskin/logger/internal/logging"
	"github.com/jitterskin/logger/internal/notify"
	"github.com/jitterskin/logger/internal/payment"
	"github.com/jitterskin/logger/internal/store"
	"github.com/jitterskin/logger/internal/telegram"
	"github.com/jitterskin/logger/internal/web"
)

const (
	storeOpenTimeout        = 10 * time.Second
	ownerBootstrapTimeout   = 5 * time.Second
	telegramShutdownTimeout = 10 * time.Second
	httpShutdownTimeout     = 10 * time.Second
)

func main() {
	configOnly := flag.Bool("config-only", false, "load and print configuration then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Error("configuration error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Setup(cfg)
	if err != nil {
		logging.Error("logger setup error", logging.Fields{"error": err})
		fmt.Fprintf(os.Stderr, "logger setup error: %v\n", err)
		os.Exit(1)
	}

	if *configOnly {
		logging.Info("configuration check", logging.Fields{"event": "config_only"})
		fmt.Println("configuration check: ok")
		fmt.Println(config.FormatRedacted(cfg))
		return
	}

	logger.WithFields(logging.Fields{
		"event":            "startup",
		"database_path":    cfg.DatabasePath,
		"payments_enabled": cfg.PaymentsEnabled(),
	}).Info("configuration loaded")

	openCtx, cancelOpen := context.WithTimeout(context.Background(), storeOpenTimeout)
	db, err := store.Open(openCtx, cfg.DatabasePath, logger)
	cancelOpen()
	if err != nil {
		logger.WithError(err).Error("database open error")
		fmt.Fprintf(os.Stderr, "database open error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "database_open").Info("opened sqlite database")

	ownerRegistrar := owner.NewRegistrar(db.Users(), db.Admins(), logger)
	ownerCtx, cancelOwner := context.WithTimeout(context.Background(), ownerBootstrapTimeout)
	if err := ownerRegistrar.EnsureOwner(ownerCtx, cfg.BotOwnerID); err != nil {
		cancelOwner()
		logger.WithError(err).Error("owner bootstrap error")
		fmt.Fprintf(os.Stderr, "owner bootstrap error: %v\n", err)
		os.Exit(1)
	}
	cancelOwner()

	notifierBot, err := bot.New(cfg.TelegramToken, bot.WithSkipGetMe())
	if err != nil {
		logger.WithError(err).Error("notifier setup error")
		fmt.Fprintf(os.Stderr, "notifier setup error: %v\n", err)
		os.Exit(1)
	}

	registry := tracker.NewRegistry(db.Users(), db.Loggers(), db.Visits(), db.Admins(), logger)
	recorder := visit.NewRecorder(db.Loggers(), db.Visits(), notify.New(notifierBot, logger), logger)

	var subscriptions *subscription.Service
	if cfg.PaymentsEnabled() {
		subscriptions = subscription.NewService(payment.NewClient(cfg.CryptoPayURL, cfg.CryptoPayToken, logger), db.Users(), logger)
	} else {
		logger.WithField("event", "payments_disabled").Warn("crypto pay token not set, subscription purchases disabled")
		subscriptions = subscription.NewService(nil, db.Users(), logger)
	}

	tgClient, err := telegram.NewClient(cfg, telegram.Deps{
		Users:         user.NewRegistrar(db.Users(), logger),
		Loggers:       registry,
		Subscriptions: subscriptions,
		Admins:        db.Admins(),
		Directory:     db.Stats(),
	}, logger)
	if err != nil {
		logger.WithError(err).Error("telegram client setup error")
		fmt.Fprintf(os.Stderr, "telegram client setup error: %v\n", err)
		os.Exit(1)
	}

	logger.WithField("event", "telegram_ready").Info("telegram client initialized")

	httpServer := web.NewServer(cfg.HTTPPort, recorder, registry, db, !cfg.IsDevelopment(), logger)

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- httpServer.ListenAndServe()
	}()

	telegramCtx, cancelTelegram := context.WithCancel(context.Background())
	tgDone := make(chan struct{})

	go func() {
		tgClient.Start(telegramCtx)
		close(tgDone)
	}()

	select {
	case <-signalCtx.Done():
		logger.WithField("event", "shutdown_signal").Info("received termination signal, stopping")
	case <-tgDone:
		logger.WithField("event", "telegram_stopped_early").Warn("telegram client stopped before shutdown signal")
	case err := <-httpErr:
		if err != nil {
			logger.WithField("event", "http_failed").WithError(err).Error("http server stopped unexpectedly")
		}
	}

	shutdownHTTP, cancelHTTP := context.WithTimeout(context.Background(), httpShutdownTimeout)
	if err := httpServer.Shutdown(shutdownHTTP); err != nil {
		logger.WithError(err).Error("http shutdown error")
	}
	cancelHTTP()

	cancelTelegram()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), telegramShutdownTimeout)
	select {
	case <-tgDone:
	case <-waitCtx.Done():
		logger.WithField("event", "telegram_shutdown_timeout").Warn("timed out waiting for telegram client to stop")
	}
	cancelWait()

	recorder.Wait()

	if err := db.Close(); err != nil {
		logger.WithError(err).Error("database close error")
	} else {
		logger.WithField("event", "database_closed").Info("database closed")
	}

	logger.WithField("event", "shutdown_complete").Info("shutdown complete")
}
