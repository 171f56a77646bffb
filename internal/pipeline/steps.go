package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/receipt-ledger/internal/domain"
)

// PipelineStep is a single step of per-document ingestion.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state of one document across steps.
type PipelineState struct {
	SourceID string
	PDFBytes []byte
	Receipt  *domain.ExtractedReceipt
	Record   *domain.LedgerRecord
}

// FetchDocumentStep downloads the document bytes from a source. It is a
// no-op when the bytes are already present.
type FetchDocumentStep struct {
	source Source
}

func (s *FetchDocumentStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.PDFBytes != nil {
		return nil
	}
	data, err := s.source.Fetch(ctx, state.SourceID)
	if err != nil {
		return fmt.Errorf("FetchDocumentStep: %w", err)
	}
	state.PDFBytes = data
	return nil
}

// ExtractReceiptStep runs the extractor over the document bytes.
type ExtractReceiptStep struct {
	extractor Extractor
}

func (s *ExtractReceiptStep) Execute(ctx context.Context, state *PipelineState) error {
	receipt, err := s.extractor.Extract(ctx, state.PDFBytes)
	if err != nil {
		return fmt.Errorf("ExtractReceiptStep: %w", err)
	}
	state.Receipt = receipt
	return nil
}

// BuildRecordStep turns the extracted receipt into a ledger record stamped
// with the document's source id.
type BuildRecordStep struct{}

func (s *BuildRecordStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Receipt == nil {
		return fmt.Errorf("BuildRecordStep: no receipt extracted")
	}
	var sourceID *string
	if state.SourceID != "" {
		sourceID = domain.StringPtr(state.SourceID)
	}
	state.Record = state.Receipt.ToLedgerRecord(sourceID)
	return nil
}

// runSteps executes steps in order, stopping at the first error.
func runSteps(ctx context.Context, state *PipelineState, steps []PipelineStep) error {
	for _, step := range steps {
		if err := step.Execute(ctx, state); err != nil {
			return err
		}
	}
	return nil
}
