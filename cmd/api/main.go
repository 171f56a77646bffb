package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/dvloznov/receipt-ledger/internal/api"
	"github.com/dvloznov/receipt-ledger/internal/api/handlers"
	"github.com/dvloznov/receipt-ledger/internal/app"
	"github.com/dvloznov/receipt-ledger/internal/config"
	"github.com/dvloznov/receipt-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/receipt-ledger/internal/logger"
)

func main() {
	bootLog := logger.New()
	cfg := config.Load(bootLog)

	// Parse command-line flags
	port := flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise application")
	}
	defer a.Close()

	if a.Exporter != nil {
		if err := a.Exporter.EnsureTable(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to ensure BigQuery outcomes table")
		}
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore,
		inmemory.WithWorkers(cfg.JobWorkers),
		inmemory.WithMaxRetries(cfg.JobMaxRetries),
	)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Strs("sources", a.SourceNames()).Int("workers", cfg.JobWorkers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, a.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	reports := cache.New(cfg.ReportCacheTTL, 2*cfg.ReportCacheTTL)

	router := api.NewRouter(api.Handlers{
		Receipts:        handlers.NewReceiptsHandler(a.Pipeline, cfg.MaxUploadSizeBytes),
		Reconciliations: handlers.NewReconciliationsHandler(a.Reconciler, reports, cfg.MaxUploadSizeBytes),
		Ledger:          handlers.NewLedgerHandler(a.Ledger),
		Jobs:            handlers.NewJobsHandler(jobStore, jobQueue, a.SourceNames()...),
	}, api.RouterConfig{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, log)

	// Extraction can take up to GEMINI_TIMEOUT, so the write timeout leaves room for it.
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.GeminiTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
