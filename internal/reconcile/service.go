package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/receipt-ledger/internal/domain"
	"github.com/dvloznov/receipt-ledger/internal/logger"
	"github.com/dvloznov/receipt-ledger/internal/statement"
)

// LedgerReader reads the full ledger.
type LedgerReader interface {
	ListAll(ctx context.Context) ([]domain.LedgerRecord, error)
}

// Sink receives finished reports, e.g. a warehouse export or a Notion database.
type Sink interface {
	Export(ctx context.Context, report *Report) error
}

// Summary counts outcomes by status.
type Summary struct {
	Matched      int `json:"matched"`
	OnlyInLedger int `json:"only_in_ledger"`
	OnlyInBank   int `json:"only_in_bank"`
}

// Report is the result of reconciling one bank statement against the ledger.
type Report struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Outcomes  []domain.Outcome `json:"reconciliation"`
	Summary   Summary          `json:"summary"`
}

// Summarize counts the outcomes of a reconciliation.
func Summarize(outcomes []domain.Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		switch o.Status {
		case domain.StatusMatched:
			s.Matched++
		case domain.StatusOnlyInLedger:
			s.OnlyInLedger++
		case domain.StatusOnlyInBank:
			s.OnlyInBank++
		}
	}
	return s
}

// Service reconciles uploaded statements against the stored ledger.
type Service struct {
	ledger LedgerReader
	sinks  []Sink
	now    func() time.Time
}

// NewService creates a reconciliation service. Sinks are optional.
func NewService(ledger LedgerReader, sinks ...Sink) *Service {
	return &Service{ledger: ledger, sinks: sinks, now: time.Now}
}

// ReconcileStatement normalises a CSV statement, reconciles it against every
// ledger record and hands the report to the configured sinks. Sink failures
// are logged and do not fail the call. A malformed statement yields a
// *domain.FormatError before the ledger is read.
func (s *Service) ReconcileStatement(ctx context.Context, data []byte) (*Report, error) {
	log := logger.FromContext(ctx)

	bank, err := statement.Normalize(data)
	if err != nil {
		return nil, fmt.Errorf("ReconcileStatement: %w", err)
	}

	ledger, err := s.ledger.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReconcileStatement: list ledger: %w", err)
	}

	outcomes := Reconcile(ledger, bank)
	report := &Report{
		ID:        uuid.New().String(),
		CreatedAt: s.now().UTC(),
		Outcomes:  outcomes,
		Summary:   Summarize(outcomes),
	}

	log = log.With().Str("report_id", report.ID).Logger()
	log.Info().
		Int("ledger_records", len(ledger)).
		Int("bank_records", len(bank)).
		Int("matched", report.Summary.Matched).
		Int("only_in_ledger", report.Summary.OnlyInLedger).
		Int("only_in_bank", report.Summary.OnlyInBank).
		Msg("Reconciliation completed")

	for _, sink := range s.sinks {
		if err := sink.Export(ctx, report); err != nil {
			log.Error().Err(err).Msgf("Failed to export report to %T", sink)
		}
	}

	return report, nil
}
