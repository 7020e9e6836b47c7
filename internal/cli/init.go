// Package cli provides common CLI initialization utilities.
// This package consolidates repeated initialization patterns across
// cmd/lana, cmd/notify-worker, cmd/recurring-worker and cmd/lanactl.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"lana/internal/amqp"
	"lana/internal/backend"
	"lana/internal/config"
	"lana/internal/ledger"
	"lana/internal/lock"
	applog "lana/internal/log"
	"lana/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Bootstrap runs the start of every binary: .env, config, logger. It exits
// the process when configuration is unusable.
func Bootstrap(component string) (*config.Config, *applog.Logger) {
	LoadEnvFile()

	cfg, err := LoadAndValidateConfig()
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	logger, err := applog.Setup(cfg.LogLevel, cfg.LogFormat, component)
	if err != nil {
		slog.Error("Failed to set up logging", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}

// OpenStore creates the configured ledger store.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Store, backend.CleanupFunc, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, nil, err
	}
	return res.Store, res.Cleanup, nil
}

// OpenPublisher connects to the broker when AMQP_URL is set. A failed
// connection is logged and the process continues without publishing; the
// notify worker's sweeper picks up whatever was stored.
func OpenPublisher(cfg *config.Config, logger *slog.Logger) (services.NotificationPublisher, func()) {
	if cfg.AMQPURL == "" {
		return nil, func() {}
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without publishing", "error", err)
		return nil, func() {}
	}
	logger.Info("Initialized AMQP client",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)
	return client, func() { _ = client.Close() }
}

// NewLocker returns a Redis-backed lock when REDIS_URL is set and a no-op
// lock otherwise.
func NewLocker(cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return lock.NoopLocker{}, func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return lock.NewRedisLocker(client, "lana:lock:"), func() { _ = client.Close() }, nil
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *slog.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()
		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
