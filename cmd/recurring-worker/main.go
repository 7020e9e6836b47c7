package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lana/internal/cli"
	applog "lana/internal/log"
	"lana/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentRecurring)
	logger.Info("Starting recurring-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := cli.OpenStore(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer cleanup()

	pub, closePub := cli.OpenPublisher(cfg, logger.Logger)
	defer closePub()

	locker, closeLocker, err := cli.NewLocker(cfg)
	if err != nil {
		logger.Error("Failed to initialize lock", "error", err)
		os.Exit(1)
	}
	defer closeLocker()

	svc := cli.Wire(store, cfg, pub, nil)
	runner := worker.NewRecurringRunner(svc.Processor, locker, worker.RecurringConfig{
		Interval: cfg.RecurringInterval,
		Location: cfg.Location(),
	})

	logger.Info("Recurring payment processor configured",
		"interval", cfg.RecurringInterval,
		"selection", cfg.PaymentSelection,
		"timezone", cfg.Timezone,
		"redis_lock", cfg.RedisURL != "")

	if err := runner.Start(ctx); err != nil {
		logger.Error("Failed to start recurring runner", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Shutting down recurring-worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := runner.Stop(shutdownCtx); err != nil {
		logger.Warn("Shutdown timeout reached", "error", err)
		return
	}
	logger.Info("Recurring-worker shutdown complete")
}
