package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/receipt-ledger/internal/domain"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

// MockStrategy is a function-field implementation of Strategy for testing.
type MockStrategy struct {
	ExtractFunc func(ctx context.Context, doc []byte) (*domain.ExtractedReceipt, error)
	calls       int
}

func (m *MockStrategy) Extract(ctx context.Context, doc []byte) (*domain.ExtractedReceipt, error) {
	m.calls++
	if m.ExtractFunc != nil {
		return m.ExtractFunc(ctx, doc)
	}
	return nil, errors.New("not implemented")
}

func failing(msg string) *MockStrategy {
	return &MockStrategy{
		ExtractFunc: func(ctx context.Context, doc []byte) (*domain.ExtractedReceipt, error) {
			return nil, errors.New(msg)
		},
	}
}

func succeeding(r *domain.ExtractedReceipt) *MockStrategy {
	return &MockStrategy{
		ExtractFunc: func(ctx context.Context, doc []byte) (*domain.ExtractedReceipt, error) {
			return r, nil
		},
	}
}

func TestChain_PrimarySucceeds(t *testing.T) {
	want := &domain.ExtractedReceipt{Description: "from primary", Tier: TierGemini}
	primary := succeeding(want)
	fallback := succeeding(&domain.ExtractedReceipt{Description: "from fallback"})

	got, err := NewChain(primary, fallback).Extract(context.Background(), []byte("pdf"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if got != want {
		t.Errorf("Extract() = %+v, want primary receipt", got)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times, want 0", fallback.calls)
	}
}

func TestChain_FallsBack(t *testing.T) {
	want := &domain.ExtractedReceipt{Description: "from fallback", Tier: TierHeuristic}

	tests := []struct {
		name    string
		primary Strategy
	}{
		{"primary error", failing("model timeout")},
		{"primary nil receipt", succeeding(nil)},
		{"primary panics", &MockStrategy{
			ExtractFunc: func(ctx context.Context, doc []byte) (*domain.ExtractedReceipt, error) {
				panic("boom")
			},
		}},
		{"no primary", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewChain(tt.primary, succeeding(want)).Extract(context.Background(), []byte("pdf"))
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if got != want {
				t.Errorf("Extract() = %+v, want fallback receipt", got)
			}
		})
	}
}

func TestChain_BothFail(t *testing.T) {
	_, err := NewChain(failing("quota exceeded"), failing("corrupt pdf")).Extract(context.Background(), []byte("x"))
	if !errors.Is(err, domain.ErrExtractionFailed) {
		t.Fatalf("Extract() error = %v, want ErrExtractionFailed", err)
	}
}

// When the AI tier is unavailable the chain returns exactly what the heuristic
// tier alone returns.
func TestChain_FallbackEquivalence(t *testing.T) {
	now := func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	text := func(doc []byte) (string, error) { return string(doc), nil }
	doc := []byte("Acme Store\nItem 1  50.00\nGrand Total: Rs. 1,234.50\n")

	heuristicOnly, err := NewHeuristicExtractorWithText(text, now).Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("heuristic Extract() error = %v", err)
	}

	chain := NewChain(failing("unavailable"), NewHeuristicExtractorWithText(text, now))
	viaChain, err := chain.Extract(context.Background(), doc)
	if err != nil {
		t.Fatalf("chain Extract() error = %v", err)
	}

	if diff := cmp.Diff(heuristicOnly, viaChain, decimalEqual); diff != "" {
		t.Errorf("chain result differs from heuristic tier (-heuristic +chain):\n%s", diff)
	}

	want := &domain.ExtractedReceipt{
		Date:          civil.Date{Year: 2024, Month: time.March, Day: 15},
		Amount:        decimal.RequireFromString("1234.50"),
		Description:   "Acme Store",
		Vendor:        domain.Unknown,
		TransactionID: domain.Unknown,
		PaymentMethod: domain.Unknown,
		LastDigits:    domain.Unknown,
		Currency:      domain.DefaultCurrency,
		Tier:          TierHeuristic,
	}
	if diff := cmp.Diff(want, viaChain, decimalEqual); diff != "" {
		t.Errorf("chain Extract() mismatch (-want +got):\n%s", diff)
	}
}
