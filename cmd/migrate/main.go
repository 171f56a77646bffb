package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/dvloznov/receipt-ledger/internal/config"
	infrabq "github.com/dvloznov/receipt-ledger/internal/infra/bigquery"
	"github.com/dvloznov/receipt-ledger/internal/infra/sqlite"
	"github.com/dvloznov/receipt-ledger/internal/logger"
)

func main() {
	log := logger.New()
	cfg := config.Load(log)

	var (
		dbPath    = flag.String("db", cfg.DatabasePath, "Path to the ledger database (or set DATABASE_PATH env)")
		withBQ    = flag.Bool("bigquery", false, "Also create the BigQuery outcomes table")
		projectID = flag.String("project", cfg.BigQueryProject, "GCP project ID (or set BIGQUERY_PROJECT env)")
		datasetID = flag.String("dataset", cfg.BigQueryDataset, "BigQuery dataset ID (or set BIGQUERY_DATASET env)")
	)
	flag.Parse()

	db, err := sqlite.Open(*dbPath, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate ledger database")
	}
	defer db.Close()

	version, dirty, err := sqlite.SchemaVersion(db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read schema version")
	}
	fmt.Printf("Ledger database %s at schema version %d (dirty=%v)\n", *dbPath, version, dirty)

	if !*withBQ {
		return
	}

	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required with -bigquery")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	exporter, err := infrabq.NewReportExporter(ctx, *projectID, *datasetID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer exporter.Close()

	if err := exporter.EnsureTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to create outcomes table")
	}
	fmt.Printf("BigQuery outcomes table ready in %s.%s\n", *projectID, *datasetID)
}
