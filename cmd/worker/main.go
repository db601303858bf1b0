package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-settlement/config"
	"marketplace-settlement/internal/app"
	"marketplace-settlement/internal/worker"
	"marketplace-settlement/pkg/logger"
	"marketplace-settlement/pkg/metrics"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("worker", cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	services, err := app.Build(ctx, cfg, registry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise services")
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		services.Close(closeCtx)
	}()

	jobs, err := worker.NewService(worker.ServiceParams{
		Logger:   log,
		Ingress:  services.Ingress,
		Payouts:  services.Payouts,
		Locker:   services.WorkerLock,
		Metrics:  metrics.NewWorkerJobMetrics(registry),
		Interval: cfg.Worker.Interval,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create worker")
	}

	// Metrics only; the worker serves no API.
	metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Str("addr", metricsAddr).Msg("metrics listener failed")
		}
	}()

	log.Info().Dur("interval", cfg.Worker.Interval).Str("lock_key", cfg.Worker.LockKey).Msg("Starting settlement worker")
	if err := jobs.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("worker stopped unexpectedly")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	log.Info().Msg("Worker exited")
}
