package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/receipt-ledger/internal/app"
	"github.com/dvloznov/receipt-ledger/internal/config"
	"github.com/dvloznov/receipt-ledger/internal/domain"
	"github.com/dvloznov/receipt-ledger/internal/logger"
	"github.com/dvloznov/receipt-ledger/internal/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load(logger.New())
	log := logger.NewWithLevel(cfg.LogLevel)

	switch os.Args[1] {
	case "ingest":
		runIngest(cfg, log)
	case "ingest-source":
		runIngestSource(cfg, log)
	case "upload":
		runUpload(cfg, log)
	case "reconcile":
		runReconcile(cfg, log)
	case "ledger":
		runLedger(cfg, log)
	case "report":
		runReport(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Receipt Ledger CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  ingest         Ingest local receipt PDFs into the ledger")
	fmt.Println("  ingest-source  Ingest every new receipt from a configured source (gmail, gcs)")
	fmt.Println("  upload         Upload a receipt PDF to the GCS bucket")
	fmt.Println("  reconcile      Reconcile a bank statement CSV against the ledger")
	fmt.Println("  ledger         List ledger records")
	fmt.Println("  report         Show an exported reconciliation report from BigQuery")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// openApp wires the application or exits.
func openApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts app.Options) *app.App {
	a, err := app.New(ctx, cfg, log, opts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise application")
	}
	return a
}

func runIngest(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	noSource := fs.Bool("no-source", false, "Store each file without a source id (no duplicate check)")
	fs.Parse(os.Args[2:])

	files := fs.Args()
	if len(files) == 0 {
		log.Fatal().Msg("Usage: cli ingest [-no-source] FILE.pdf [FILE.pdf ...]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log, app.Options{})
	defer a.Close()

	if *noSource {
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				log.Fatal().Err(err).Str("file", f).Msg("Failed to read file")
			}
			rec, err := a.Pipeline.IngestOne(ctx, data)
			if err != nil {
				log.Error().Err(err).Str("file", f).Msg("Failed to ingest receipt")
				continue
			}
			fmt.Printf("%s: stored ledger record %d (%s %s %s)\n", f, rec.ID, rec.Date, rec.Amount.StringFixed(2), rec.Description)
		}
		return
	}

	batch := make([]pipeline.Document, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatal().Err(err).Str("file", f).Msg("Failed to read file")
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		batch = append(batch, pipeline.Document{SourceID: "file://" + abs, Data: data})
	}

	n, err := a.Pipeline.Ingest(ctx, batch)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}
	fmt.Printf("Ingested %d of %d receipts.\n", n, len(batch))
}

func runIngestSource(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest-source", flag.ExitOnError)
	source := fs.String("source", "gmail", "Source to ingest: gmail or gcs")
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log, app.Options{})
	defer a.Close()

	src, err := a.Source(*source)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot ingest source")
	}

	log.Info().Str("source", *source).Msg("Starting ingestion")

	n, err := a.Pipeline.IngestFrom(ctx, src)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}
	fmt.Printf("Ingested %d new receipts from %s.\n", n, *source)
}

func runUpload(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to local PDF file")
	objectName := fs.String("object", "", "Object name under GCS_PREFIX (defaults to filename)")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -file PATH [-object NAME]")
	}
	if *objectName == "" {
		*objectName = filepath.Base(*filePath)
	}

	ctx := logger.WithContext(context.Background(), log)

	a := openApp(ctx, cfg, log, app.Options{})
	defer a.Close()

	if a.Bucket == nil {
		log.Fatal().Msg("GCS_BUCKET is not configured")
	}

	log.Info().
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	uri, err := a.Bucket.Upload(ctx, *objectName, *filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, uri)
}

func runReconcile(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	filePath := fs.String("file", "", "Path to bank statement CSV")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	dryRun := fs.Bool("notion-dry-run", false, "Log Notion pages instead of creating them")
	fs.Parse(os.Args[2:])

	if *filePath == "" {
		log.Fatal().Msg("Usage: cli reconcile -file STATEMENT.csv [-json]")
	}

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read statement")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log, app.Options{NotionDryRun: *dryRun})
	defer a.Close()

	report, err := a.Reconciler.ReconcileStatement(ctx, data)
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			log.Fatal().Err(err).Msg("Failed to encode report")
		}
		return
	}

	fmt.Printf("Report %s: %d matched, %d only in ledger, %d only in bank\n\n",
		report.ID, report.Summary.Matched, report.Summary.OnlyInLedger, report.Summary.OnlyInBank)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tDATE\tAMOUNT\tDESCRIPTION\tTRANSACTION ID")
	for _, o := range report.Outcomes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.Status, o.Date, o.Amount.StringFixed(2), o.Description, deref(o.TransactionID))
	}
	w.Flush()
}

func runLedger(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ledger", flag.ExitOnError)
	limit := fs.Int("limit", 50, "Maximum number of records")
	offset := fs.Int("offset", 0, "Records to skip")
	fs.Parse(os.Args[2:])

	ctx := logger.WithContext(context.Background(), log)

	a := openApp(ctx, cfg, log, app.Options{})
	defer a.Close()

	records, total, err := a.Ledger.List(ctx, *limit, *offset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list ledger")
	}

	fmt.Printf("Showing %d of %d ledger records\n\n", len(records), total)
	printLedger(records)
}

func printLedger(records []domain.LedgerRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tAMOUNT\tCURRENCY\tVENDOR\tDESCRIPTION\tSOURCE")
	for _, r := range records {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Date, r.Amount.StringFixed(2), r.Currency, r.Vendor, truncate(r.Description, 40), deref(r.SourceID))
	}
	w.Flush()
}

func runReport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	reportID := fs.String("id", "", "Report ID")
	fs.Parse(os.Args[2:])

	if *reportID == "" {
		log.Fatal().Msg("Error: -id is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a := openApp(ctx, cfg, log, app.Options{})
	defer a.Close()

	if a.Exporter == nil {
		log.Fatal().Msg("BIGQUERY_PROJECT is not configured")
	}

	rows, err := a.Exporter.QueryReport(ctx, *reportID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query report")
	}
	if len(rows) == 0 {
		fmt.Printf("No rows found for report %s\n", *reportID)
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSTATUS\tDATE\tAMOUNT\tDESCRIPTION")
	for _, r := range rows {
		date := ""
		if r.Date.Valid {
			date = r.Date.Date.String()
		}
		amount := ""
		if r.Amount != nil {
			amount = r.Amount.FloatString(2)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", r.Position, r.Status, date, amount, r.Description)
	}
	w.Flush()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-3]) + "..."
}
