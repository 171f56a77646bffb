// Package pipeline ingests receipt documents into the ledger. Each document
// runs through an ordered list of steps; documents whose source id is already
// in the ledger are skipped without being fetched or extracted.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/receipt-ledger/internal/domain"
	"github.com/dvloznov/receipt-ledger/internal/logger"
)

// Document is one receipt to ingest. SourceID is the idempotency key; an
// empty SourceID disables the duplicate check for that document.
type Document struct {
	SourceID string
	Data     []byte
}

// Deps carries the pipeline's collaborators.
type Deps struct {
	Extractor Extractor
	Repo      LedgerRepository

	// Seen returns the source ids already in the ledger. Defaults to Repo.ListSourceIDs.
	Seen func(ctx context.Context) ([]string, error)

	// Now stamps CreatedAt on staged records. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline ingests receipt documents into the ledger.
type Pipeline struct {
	deps Deps
}

// New creates a pipeline from its dependencies.
func New(deps Deps) *Pipeline {
	if deps.Seen == nil && deps.Repo != nil {
		deps.Seen = deps.Repo.ListSourceIDs
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Pipeline{deps: deps}
}

// Ingest processes a batch of in-memory documents in order and commits every
// extracted record in one transaction. It returns the number of records made
// durable. A document that cannot be extracted is logged and skipped; a
// persistence failure aborts the batch with a zero count.
func (p *Pipeline) Ingest(ctx context.Context, batch []Document) (int, error) {
	ids := make([]string, len(batch))
	for i, doc := range batch {
		ids[i] = doc.SourceID
	}
	return p.run(ctx, ids, func(i int) *PipelineState {
		return &PipelineState{SourceID: batch[i].SourceID, PDFBytes: batch[i].Data}
	}, nil)
}

// IngestFrom lists the source and ingests every document not yet in the
// ledger. A failed List aborts the run; a failed Fetch skips that document.
func (p *Pipeline) IngestFrom(ctx context.Context, src Source) (int, error) {
	ids, err := src.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("IngestFrom: list documents: %w", err)
	}
	return p.run(ctx, ids, func(i int) *PipelineState {
		return &PipelineState{SourceID: ids[i]}
	}, &FetchDocumentStep{source: src})
}

// IngestOne extracts and persists a single document that carries no source
// id. It returns domain.ErrExtractionFailed when no tier could read it.
func (p *Pipeline) IngestOne(ctx context.Context, doc []byte) (*domain.LedgerRecord, error) {
	log := logger.FromContext(ctx)

	state := &PipelineState{PDFBytes: doc}
	steps := []PipelineStep{
		&ExtractReceiptStep{extractor: p.deps.Extractor},
		&BuildRecordStep{},
	}
	if err := runSteps(ctx, state, steps); err != nil {
		log.Warn().Err(err).Msg("Failed to extract uploaded receipt")
		return nil, fmt.Errorf("IngestOne: %w", err)
	}

	state.Record.CreatedAt = p.deps.Now().UTC()
	if err := p.deps.Repo.Insert(ctx, state.Record); err != nil {
		return nil, fmt.Errorf("IngestOne: persist record: %w", err)
	}

	log.Info().
		Int64("ledger_id", state.Record.ID).
		Str("tier", state.Receipt.Tier).
		Msg("Receipt ingested")
	return state.Record, nil
}

func (p *Pipeline) run(ctx context.Context, ids []string, newState func(i int) *PipelineState, fetch PipelineStep) (int, error) {
	log := logger.FromContext(ctx)

	seenIDs, err := p.deps.Seen(ctx)
	if err != nil {
		return 0, fmt.Errorf("Ingest: load ingested source ids: %w", err)
	}
	seen := make(map[string]struct{}, len(seenIDs)+len(ids))
	for _, id := range seenIDs {
		seen[id] = struct{}{}
	}

	steps := make([]PipelineStep, 0, 3)
	if fetch != nil {
		steps = append(steps, fetch)
	}
	steps = append(steps, &ExtractReceiptStep{extractor: p.deps.Extractor}, &BuildRecordStep{})

	var staged []*domain.LedgerRecord
	skipped, failed := 0, 0
	for i, id := range ids {
		docLog := log.With().Str("source_id", id).Logger()

		if id != "" {
			if _, ok := seen[id]; ok {
				docLog.Info().Err(domain.ErrDuplicateSource).Msg("Skipping document")
				skipped++
				continue
			}
		}

		state := newState(i)
		if err := runSteps(ctx, state, steps); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, fmt.Errorf("Ingest: %w", ctxErr)
			}
			docLog.Error().Err(err).Msg("Failed to ingest document")
			failed++
			continue
		}

		state.Record.CreatedAt = p.deps.Now().UTC()
		staged = append(staged, state.Record)
		if id != "" {
			seen[id] = struct{}{}
		}
		logStaged(docLog, state)
	}

	if len(staged) == 0 {
		log.Info().Int("skipped", skipped).Int("failed", failed).Msg("No new receipts to persist")
		return 0, nil
	}

	n, err := p.deps.Repo.InsertBatch(ctx, staged)
	if err != nil {
		return 0, fmt.Errorf("Ingest: persist %d records: %w", len(staged), err)
	}
	if n < len(staged) {
		log.Warn().
			Strs("dropped_source_ids", droppedSourceIDs(staged)).
			Int("staged", len(staged)).
			Int("written", n).
			Msg("Ledger already held some staged receipts")
	}

	log.Info().
		Int("ingested", n).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("Ingestion batch committed")
	return n, nil
}

// droppedSourceIDs lists the staged records the repository did not write.
func droppedSourceIDs(staged []*domain.LedgerRecord) []string {
	var ids []string
	for _, rec := range staged {
		if rec.ID == 0 && rec.SourceID != nil {
			ids = append(ids, *rec.SourceID)
		}
	}
	return ids
}

func logStaged(log zerolog.Logger, state *PipelineState) {
	log.Debug().
		Str("tier", state.Receipt.Tier).
		Str("amount", state.Record.Amount.String()).
		Str("date", state.Record.Date.String()).
		Msg("Receipt staged")
}
