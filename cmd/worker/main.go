package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/receipt-ledger/internal/app"
	"github.com/dvloznov/receipt-ledger/internal/config"
	"github.com/dvloznov/receipt-ledger/internal/jobs"
	"github.com/dvloznov/receipt-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/receipt-ledger/internal/logger"
)

// The worker polls every configured document source on an interval and
// ingests new receipts through the job queue.
func main() {
	cfg := config.Load(logger.New())

	interval := flag.Duration("interval", cfg.PollInterval, "Polling interval (or set POLL_INTERVAL env)")
	once := flag.Bool("once", false, "Poll every source once and exit")
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise application")
	}
	defer a.Close()

	sources := a.SourceNames()
	if len(sources) == 0 {
		log.Fatal().Msg("No document sources configured (set GMAIL_SENDERS or GCS_BUCKET)")
	}

	if *once {
		for _, name := range sources {
			n, err := a.HandleJob(ctx, &jobs.IngestJob{Source: name})
			if err != nil {
				log.Error().Err(err).Str("source", name).Msg("Ingestion failed")
				continue
			}
			log.Info().Str("source", name).Int("ingested", n).Msg("Ingestion completed")
		}
		return
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(len(sources)*2, jobStore,
		inmemory.WithWorkers(cfg.JobWorkers),
		inmemory.WithMaxRetries(cfg.JobMaxRetries),
	)

	if err := jobQueue.Start(ctx, a.HandleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().
		Strs("sources", sources).
		Dur("interval", *interval).
		Msg("Worker service started")

	poll := func() {
		for _, name := range sources {
			if err := jobQueue.PublishIngest(ctx, &jobs.IngestJob{Source: name}); err != nil {
				log.Error().Err(err).Str("source", name).Msg("Failed to enqueue ingestion job")
			}
		}
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	poll()
loop:
	for {
		select {
		case <-ticker.C:
			poll()
		case <-quit:
			break loop
		}
	}

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	log.Info().Msg("Worker service exited")
}
