package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/receipt-ledger/internal/config"
	"github.com/dvloznov/receipt-ledger/internal/extract"
	"github.com/dvloznov/receipt-ledger/internal/logger"
)

// extract-receipt runs receipt extraction on a local PDF and prints the
// result without touching the ledger.
func main() {
	log := logger.New()
	cfg := config.Load(log)

	var (
		pdfPath       = flag.String("file", "", "Path to a receipt PDF")
		heuristicOnly = flag.Bool("heuristic", false, "Skip Gemini and use text heuristics only")
	)
	flag.Parse()

	if *pdfPath == "" {
		log.Fatal().Msg("Usage: extract-receipt -file RECEIPT.pdf [-heuristic]")
	}

	doc, err := os.ReadFile(*pdfPath)
	if err != nil {
		log.Fatal().Err(err).Str("file", *pdfPath).Msg("Failed to read PDF")
	}

	ctx := logger.WithContext(context.Background(), log)

	var primary extract.Strategy
	if !*heuristicOnly {
		gemini, err := extract.NewGeminiExtractor(ctx, extract.GeminiConfig{
			Model:           cfg.GeminiModel,
			APIVersion:      cfg.GeminiAPIVersion,
			Timeout:         cfg.GeminiTimeout,
			MaxOutputTokens: cfg.GeminiMaxOutputTokens,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Gemini unavailable, using heuristics only")
		} else {
			primary = gemini
		}
	}
	chain := extract.NewChain(primary, extract.NewHeuristicExtractor(time.Now))

	receipt, err := chain.Extract(ctx, doc)
	if err != nil {
		log.Fatal().Err(err).Msg("Extraction failed")
	}

	out := struct {
		Tier   string      `json:"tier"`
		Record interface{} `json:"record"`
	}{
		Tier:   receipt.Tier,
		Record: receipt.ToLedgerRecord(nil),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		os.Exit(1)
	}
}
