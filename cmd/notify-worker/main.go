package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"lana/internal/amqp"
	"lana/internal/cli"
	"lana/internal/core"
	"lana/internal/delivery"
	applog "lana/internal/log"
	"lana/internal/metrics"
	"lana/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentNotifier)
	logger.Info("Starting notify-worker")

	store, cleanup, err := cli.OpenStore(context.Background(), cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer cleanup()

	router := delivery.Router{
		core.ChannelEmail: delivery.LogDeliverer{Channel: core.ChannelEmail, Logger: logger.Logger},
		core.ChannelSMS:   delivery.LogDeliverer{Channel: core.ChannelSMS, Logger: logger.Logger},
		core.ChannelPush:  delivery.LogDeliverer{Channel: core.ChannelPush, Logger: logger.Logger},
	}
	if cfg.DiscordBotToken != "" {
		discord, err := delivery.NewDiscordDeliverer(cfg.DiscordBotToken, cfg.DiscordChannelID)
		if err != nil {
			logger.Error("Failed to initialize Discord delivery", "error", err)
			os.Exit(1)
		}
		router[core.ChannelPush] = discord
		logger.Info("Push notifications delivered via Discord", "channel_id", cfg.DiscordChannelID)
	}

	m := metrics.New()
	notifier := worker.NewNotifyWorker(store, router, cfg.NotifyBatchSize, m)
	sweeper := worker.NewSweeper(notifier, worker.SweeperConfig{
		PollInterval: cfg.NotifySweepInterval,
		BatchSize:    cfg.NotifyBatchSize,
	})

	var consumer *amqp.Client
	if cfg.AMQPURL != "" {
		consumer, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
	} else {
		logger.Info("AMQP disabled - relying on the pending notification sweep")
	}

	r := mux.NewRouter()
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	metricsSrv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	ctx, done := cli.GracefulShutdown(logger.Logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := sweeper.Stop(shutdownCtx); err != nil {
			logger.Warn("Sweeper stop failed", "error", err)
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown failed", "error", err)
		}
	})

	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err, "port", cfg.Port)
		}
	}()

	logger.Info("Performing startup delivery check...")
	if err := notifier.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup delivery check", "error", err)
	}

	if err := sweeper.Start(ctx); err != nil {
		logger.Error("Failed to start sweeper", "error", err)
		os.Exit(1)
	}

	if consumer != nil {
		go func() {
			err := consumer.ConsumeNotifications(ctx, notifier.HandleNotificationMessage)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Message consumption failed", "error", err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Notify-worker shutdown complete")
}
