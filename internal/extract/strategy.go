// Package extract turns receipt documents into structured receipts. Two
// strategies are composed by an explicit Chain: an AI-assisted extractor and a
// deterministic text-pattern fallback.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/receipt-ledger/internal/domain"
	"github.com/dvloznov/receipt-ledger/internal/logger"
)

const (
	TierGemini    = "gemini"
	TierHeuristic = "heuristic"
)

// Strategy is one extraction tier. Implementations return an error rather than
// a partially populated receipt when they cannot produce one.
type Strategy interface {
	Extract(ctx context.Context, doc []byte) (*domain.ExtractedReceipt, error)
}

// Chain runs the primary strategy and falls back to the second one when the
// primary fails. Primary may be nil, in which case only the fallback runs.
type Chain struct {
	primary  Strategy
	fallback Strategy
}

// NewChain composes two strategies into a fallback chain.
func NewChain(primary, fallback Strategy) *Chain {
	return &Chain{primary: primary, fallback: fallback}
}

// Extract returns a receipt from the first tier that succeeds. It fails with
// domain.ErrExtractionFailed only when both tiers fail.
func (c *Chain) Extract(ctx context.Context, doc []byte) (*domain.ExtractedReceipt, error) {
	log := logger.FromContext(ctx)

	var primaryErr error
	if c.primary != nil {
		receipt, err := safeExtract(ctx, c.primary, doc)
		if err == nil {
			return receipt, nil
		}
		primaryErr = err
		log.Warn().Err(err).Msg("Primary extraction failed, falling back to text heuristics")
	}

	receipt, err := safeExtract(ctx, c.fallback, doc)
	if err == nil {
		return receipt, nil
	}
	log.Error().Err(err).Msg("Fallback extraction failed")

	return nil, fmt.Errorf("%w: %w", domain.ErrExtractionFailed, errors.Join(primaryErr, err))
}

// safeExtract keeps a misbehaving strategy (panic, nil receipt) from escaping the chain.
func safeExtract(ctx context.Context, s Strategy, doc []byte) (receipt *domain.ExtractedReceipt, err error) {
	if s == nil {
		return nil, errors.New("no strategy configured")
	}
	defer func() {
		if r := recover(); r != nil {
			receipt, err = nil, fmt.Errorf("strategy panicked: %v", r)
		}
	}()

	receipt, err = s.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, errors.New("strategy returned no receipt")
	}
	return receipt, nil
}
