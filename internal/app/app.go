// Package app wires configuration into the ledger's components. Both the API
// server and the CLI build their dependencies through New.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/receipt-ledger/internal/config"
	"github.com/dvloznov/receipt-ledger/internal/extract"
	infrabq "github.com/dvloznov/receipt-ledger/internal/infra/bigquery"
	"github.com/dvloznov/receipt-ledger/internal/infra/sqlite"
	"github.com/dvloznov/receipt-ledger/internal/jobs"
	"github.com/dvloznov/receipt-ledger/internal/notionsync"
	"github.com/dvloznov/receipt-ledger/internal/pipeline"
	"github.com/dvloznov/receipt-ledger/internal/reconcile"
	"github.com/dvloznov/receipt-ledger/internal/sources/gcs"
	"github.com/dvloznov/receipt-ledger/internal/sources/gmail"
)

// App holds the wired components.
type App struct {
	DB         *sql.DB
	Ledger     *sqlite.LedgerRepo
	Pipeline   *pipeline.Pipeline
	Reconciler *reconcile.Service

	// Sources are the configured document sources keyed by jobs.Source* name.
	Sources map[string]pipeline.Source

	// Bucket is set when GCS_BUCKET is configured; the CLI uploads through it.
	Bucket *gcs.BucketSource

	// Exporter is set when BIGQUERY_PROJECT is configured.
	Exporter *infrabq.ReportExporter

	closers []func() error
}

// Options toggles optional integrations.
type Options struct {
	// NotionDryRun logs Notion pages instead of creating them.
	NotionDryRun bool
}

// New opens the ledger database and builds every component the configuration
// enables. Optional integrations that fail to initialise are logged and left
// out; only the ledger database is mandatory.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*App, error) {
	db, err := sqlite.Open(cfg.DatabasePath, log)
	if err != nil {
		return nil, fmt.Errorf("New: %w", err)
	}

	a := &App{
		DB:      db,
		Ledger:  sqlite.NewLedgerRepo(db),
		Sources: make(map[string]pipeline.Source),
	}
	a.closers = append(a.closers, db.Close)

	a.Pipeline = pipeline.New(pipeline.Deps{
		Extractor: newExtractor(ctx, cfg, log),
		Repo:      a.Ledger,
	})

	a.openSources(ctx, cfg, log)
	a.Reconciler = reconcile.NewService(a.Ledger, a.newSinks(ctx, cfg, log, opts)...)

	return a, nil
}

func newExtractor(ctx context.Context, cfg *config.Config, log zerolog.Logger) *extract.Chain {
	heuristic := extract.NewHeuristicExtractor(time.Now)

	gemini, err := extract.NewGeminiExtractor(ctx, extract.GeminiConfig{
		Model:           cfg.GeminiModel,
		APIVersion:      cfg.GeminiAPIVersion,
		Timeout:         cfg.GeminiTimeout,
		MaxOutputTokens: cfg.GeminiMaxOutputTokens,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Gemini extraction disabled, using heuristic extraction only")
		return extract.NewChain(nil, heuristic)
	}

	log.Info().Str("model", cfg.GeminiModel).Msg("Gemini extraction enabled")
	return extract.NewChain(gemini, heuristic)
}

func (a *App) openSources(ctx context.Context, cfg *config.Config, log zerolog.Logger) {
	if len(cfg.GmailSenders) > 0 {
		ts, err := gmail.TokenSource(ctx, cfg.GmailCredentialsFile, cfg.GmailTokenFile)
		if err == nil {
			var mailbox *gmail.MailboxSource
			mailbox, err = gmail.NewMailboxSource(ctx, ts, cfg.GmailSenders)
			if err == nil {
				a.Sources[jobs.SourceGmail] = mailbox
			}
		}
		if err != nil {
			log.Warn().Err(err).Msg("Gmail source disabled")
		}
	}

	if cfg.GCSBucket != "" {
		bucket, err := gcs.NewBucketSource(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			log.Warn().Err(err).Msg("GCS source disabled")
		} else {
			a.Bucket = bucket
			a.Sources[jobs.SourceGCS] = bucket
			a.closers = append(a.closers, bucket.Close)
		}
	}
}

func (a *App) newSinks(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) []reconcile.Sink {
	var sinks []reconcile.Sink

	if cfg.BigQueryProject != "" {
		exporter, err := infrabq.NewReportExporter(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			log.Warn().Err(err).Msg("BigQuery export disabled")
		} else {
			a.Exporter = exporter
			a.closers = append(a.closers, exporter.Close)
			sinks = append(sinks, exporter)
		}
	}

	if cfg.NotionToken != "" && cfg.NotionDatabaseID != "" {
		client := notionsync.NewNotionClient(cfg.NotionToken)
		sinks = append(sinks, notionsync.NewPublisher(client, cfg.NotionDatabaseID, opts.NotionDryRun))
	}

	return sinks
}

// SourceNames returns the configured source names in sorted order.
func (a *App) SourceNames() []string {
	names := make([]string, 0, len(a.Sources))
	for name := range a.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Source returns the named source or an error naming the configured ones.
func (a *App) Source(name string) (pipeline.Source, error) {
	src, ok := a.Sources[name]
	if !ok {
		return nil, fmt.Errorf("source %q is not configured (configured: %v)", name, a.SourceNames())
	}
	return src, nil
}

// HandleJob runs an ingestion job. It satisfies jobs.JobHandler.
func (a *App) HandleJob(ctx context.Context, job jobs.Job) (int, error) {
	ingestJob, ok := job.(*jobs.IngestJob)
	if !ok {
		return 0, fmt.Errorf("HandleJob: unexpected job type: %T", job)
	}

	src, err := a.Source(ingestJob.Source)
	if err != nil {
		return 0, fmt.Errorf("HandleJob: %w", err)
	}

	n, err := a.Pipeline.IngestFrom(ctx, src)
	if err != nil {
		return 0, fmt.Errorf("HandleJob: ingest %s: %w", ingestJob.Source, err)
	}
	return n, nil
}

// Close releases every opened client, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
