package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/receipt-ledger/internal/domain"
)

type MockLedgerReader struct {
	ListAllFunc func(ctx context.Context) ([]domain.LedgerRecord, error)
}

func (m *MockLedgerReader) ListAll(ctx context.Context) ([]domain.LedgerRecord, error) {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx)
	}
	return nil, nil
}

type recordingSink struct {
	reports []*Report
	err     error
}

func (s *recordingSink) Export(ctx context.Context, report *Report) error {
	s.reports = append(s.reports, report)
	return s.err
}

func TestService_ReconcileStatement(t *testing.T) {
	reader := &MockLedgerReader{
		ListAllFunc: func(ctx context.Context) ([]domain.LedgerRecord, error) {
			return []domain.LedgerRecord{
				ledgerRec(1, "2024-01-05", "Travel", "-120.00", nil),
				ledgerRec(2, "2024-01-07", "Books", "-30.00", nil),
			}, nil
		},
	}
	failing := &recordingSink{err: errors.New("warehouse unavailable")}
	ok := &recordingSink{}

	svc := NewService(reader, failing, ok)
	csv := "Date,Category,Amount\n2024-01-05,Travel,-120.00\n2024-01-09,Fuel,-60\n"

	report, err := svc.ReconcileStatement(context.Background(), []byte(csv))
	if err != nil {
		t.Fatalf("ReconcileStatement() error = %v", err)
	}

	want := Summary{Matched: 1, OnlyInLedger: 1, OnlyInBank: 1}
	if report.Summary != want {
		t.Errorf("Summary = %+v, want %+v", report.Summary, want)
	}
	if report.ID == "" {
		t.Error("report ID is empty")
	}
	if len(failing.reports) != 1 || len(ok.reports) != 1 {
		t.Errorf("sinks received %d and %d reports, want 1 each", len(failing.reports), len(ok.reports))
	}
}

func TestService_ReconcileStatement_FormatError(t *testing.T) {
	called := false
	reader := &MockLedgerReader{
		ListAllFunc: func(ctx context.Context) ([]domain.LedgerRecord, error) {
			called = true
			return nil, nil
		},
	}

	_, err := NewService(reader).ReconcileStatement(context.Background(), []byte("Date,Category\n2024-01-01,x\n"))
	var fe *domain.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("ReconcileStatement() error = %v, want *FormatError", err)
	}
	if called {
		t.Error("ledger was read for a malformed statement")
	}
}

func TestService_ReconcileStatement_LedgerError(t *testing.T) {
	reader := &MockLedgerReader{
		ListAllFunc: func(ctx context.Context) ([]domain.LedgerRecord, error) {
			return nil, errors.New("database is locked")
		},
	}

	if _, err := NewService(reader).ReconcileStatement(context.Background(), []byte("Date,Amount\n2024-01-01,1\n")); err == nil {
		t.Fatal("ReconcileStatement() error = nil, want error")
	}
}
