package bigquery

import (
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/receipt-ledger/internal/domain"
	"github.com/dvloznov/receipt-ledger/internal/reconcile"
)

func TestOutcomeRows(t *testing.T) {
	ledgerID := int64(7)
	created := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	report := &reconcile.Report{
		ID:        "rep-1",
		CreatedAt: created,
		Outcomes: []domain.Outcome{
			{
				Status:        domain.StatusMatched,
				Date:          "2024-01-05",
				Description:   "Uber Ride",
				Amount:        decimal.RequireFromString("-120.50"),
				Vendor:        domain.StringPtr("Razorpay"),
				TransactionID: domain.StringPtr("T1"),
				LedgerID:      &ledgerID,
			},
			{
				Status:      domain.StatusOnlyInBank,
				Date:        "not a date",
				Description: "Fuel",
				Amount:      decimal.RequireFromString("60"),
			},
		},
	}

	rows := OutcomeRows(report)
	if len(rows) != 2 {
		t.Fatalf("OutcomeRows() returned %d rows, want 2", len(rows))
	}

	first := rows[0]
	if first.ReportID != "rep-1" || first.Position != 0 || first.Status != "Matched" {
		t.Errorf("first row header = %q/%d/%q", first.ReportID, first.Position, first.Status)
	}
	if first.Amount.Cmp(big.NewRat(-241, 2)) != 0 {
		t.Errorf("Amount = %s, want -120.50", first.Amount.FloatString(2))
	}
	if !first.Date.Valid || first.Date.Date != (civil.Date{Year: 2024, Month: time.January, Day: 5}) {
		t.Errorf("Date = %+v, want 2024-01-05", first.Date)
	}
	if !first.LedgerID.Valid || first.LedgerID.Int64 != 7 {
		t.Errorf("LedgerID = %+v, want 7", first.LedgerID)
	}
	if !first.Vendor.Valid || first.Vendor.StringVal != "Razorpay" {
		t.Errorf("Vendor = %+v, want Razorpay", first.Vendor)
	}
	if !first.ReportedTS.Equal(created) {
		t.Errorf("ReportedTS = %v, want %v", first.ReportedTS, created)
	}

	second := rows[1]
	if second.Date.Valid {
		t.Errorf("Date = %+v, want null for unparseable date", second.Date)
	}
	if second.LedgerID.Valid || second.Vendor.Valid {
		t.Errorf("bank-only row has ledger fields: %+v", second)
	}
	if second.Position != 1 {
		t.Errorf("Position = %d, want 1", second.Position)
	}
}
