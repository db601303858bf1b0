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
	httpHandler "marketplace-settlement/internal/adapter/http/handler"
	"marketplace-settlement/internal/app"
	"marketplace-settlement/internal/worker"
	"marketplace-settlement/pkg/logger"
	"marketplace-settlement/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("api", cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("gateway", cfg.Gateway.Driver).
		Msg("Starting Marketplace Settlement API")

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

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		IngressSvc:      services.Ingress,
		OrderSvc:        services.Orders,
		DisputeSvc:      services.Disputes,
		PayoutSvc:       services.Payouts,
		BankAccountSvc:  services.BankAccounts,
		LedgerSvc:       services.Ledger,
		TokenSvc:        services.Tokens,
		AuditSvc:        services.Audit,
		RateLimitStore:  services.RateLimitStore,
		MetricsGatherer: registry,
		HealthCheckers:  services.HealthCheckers,
		Logger:          log,
	})

	workerDone := make(chan struct{})
	if cfg.Worker.Embedded {
		jobs, err := worker.NewService(worker.ServiceParams{
			Logger:   log.With().Str("component", "worker").Logger(),
			Ingress:  services.Ingress,
			Payouts:  services.Payouts,
			Locker:   services.WorkerLock,
			Metrics:  metrics.NewWorkerJobMetrics(registry),
			Interval: cfg.Worker.Interval,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create embedded worker")
		}
		go func() {
			defer close(workerDone)
			if err := jobs.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("embedded worker stopped unexpectedly")
			}
		}()
	} else {
		close(workerDone)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("HTTP server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	<-workerDone
	services.Close(shutdownCtx)

	log.Info().Msg("Server exited")
}
