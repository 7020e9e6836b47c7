package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"lana/internal/cli"
	apphttp "lana/internal/http"
	applog "lana/internal/log"
	"lana/internal/metrics"
	"lana/internal/middleware/ratelimit"
)

func main() {
	cfg, logger := cli.Bootstrap(applog.ComponentHTTP)

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

	m := metrics.New()
	svc := cli.Wire(store, cfg, pub, m)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Catalog:       svc.Catalog,
		Transactions:  svc.Transactions,
		Budgets:       svc.Budgets,
		Payments:      svc.Payments,
		Processor:     svc.Processor,
		Notifications: svc.Notifications,
		Reports:       svc.Reports,
		Store:         store,
		Metrics:       m,
	}, apphttp.Options{
		Logger:   logger,
		APIToken: cfg.APIToken,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		Location: cfg.Location(),
	})
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting lana server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
