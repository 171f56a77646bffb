package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/receipt-ledger/internal/domain"
)

const maxDescriptionRunes = 100

var amountPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// TextFunc returns the plain text of a document, one line per text row.
type TextFunc func(doc []byte) (string, error)

// HeuristicExtractor is the deterministic fallback tier. It works on the
// document's plain text and never calls out to a remote service.
type HeuristicExtractor struct {
	text TextFunc
	now  func() time.Time
}

// NewHeuristicExtractor returns a fallback extractor reading PDFs with
// PDFText. A nil clock means time.Now.
func NewHeuristicExtractor(now func() time.Time) *HeuristicExtractor {
	return NewHeuristicExtractorWithText(PDFText, now)
}

// NewHeuristicExtractorWithText is NewHeuristicExtractor with a custom text source.
func NewHeuristicExtractorWithText(text TextFunc, now func() time.Time) *HeuristicExtractor {
	if now == nil {
		now = time.Now
	}
	return &HeuristicExtractor{text: text, now: now}
}

// Extract derives a receipt from the document text: the amount comes from the
// first line mentioning a total, the description from the first non-empty line.
func (h *HeuristicExtractor) Extract(ctx context.Context, doc []byte) (*domain.ExtractedReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("HeuristicExtractor: %w", err)
	}

	text, err := h.text(doc)
	if err != nil {
		return nil, fmt.Errorf("HeuristicExtractor: read text: %w", err)
	}

	receipt := parseReceiptText(text)
	receipt.Date = today(h.now())
	return receipt, nil
}

func parseReceiptText(text string) *domain.ExtractedReceipt {
	receipt := &domain.ExtractedReceipt{
		Amount:        decimal.Zero,
		Description:   domain.Unknown,
		Vendor:        domain.Unknown,
		TransactionID: domain.Unknown,
		PaymentMethod: domain.Unknown,
		LastDigits:    domain.Unknown,
		Currency:      domain.DefaultCurrency,
		Tier:          TierHeuristic,
	}

	foundTotal := false
	foundDescription := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !foundDescription {
			receipt.Description = truncateRunes(line, maxDescriptionRunes)
			foundDescription = true
		}
		if !foundTotal && strings.Contains(strings.ToLower(line), "total") {
			foundTotal = true
			if m := amountPattern.FindString(line); m != "" {
				if d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", "")); err == nil {
					receipt.Amount = d
				}
			}
		}
		if foundTotal && foundDescription {
			break
		}
	}

	return receipt
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
