// Package bigquery exports reconciliation reports to a BigQuery table, one
// row per outcome.
package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/receipt-ledger/internal/reconcile"
)

// OutcomeRow is one line of a reconciliation report.
type OutcomeRow struct {
	ReportID string `bigquery:"report_id"` // REQUIRED
	Position int64  `bigquery:"position"`  // REQUIRED, order within the report
	Status   string `bigquery:"status"`    // REQUIRED

	Date        bigquery.NullDate `bigquery:"date"`        // NULLABLE
	Description string            `bigquery:"description"` // REQUIRED
	Amount      *big.Rat          `bigquery:"amount"`      // REQUIRED NUMERIC

	Vendor         bigquery.NullString `bigquery:"vendor"`
	TransactionID  bigquery.NullString `bigquery:"transaction_id"`
	PaymentMethod  bigquery.NullString `bigquery:"payment_method"`
	LastFourDigits bigquery.NullString `bigquery:"last_digits"`
	Currency       bigquery.NullString `bigquery:"currency"`
	SourceID       bigquery.NullString `bigquery:"source_id"`
	LedgerID       bigquery.NullInt64  `bigquery:"ledger_id"`

	ReportedTS time.Time `bigquery:"reported_ts"` // REQUIRED
}

// OutcomeRows flattens a report into table rows.
func OutcomeRows(report *reconcile.Report) []*OutcomeRow {
	rows := make([]*OutcomeRow, 0, len(report.Outcomes))
	for i, o := range report.Outcomes {
		row := &OutcomeRow{
			ReportID:       report.ID,
			Position:       int64(i),
			Status:         string(o.Status),
			Description:    o.Description,
			Amount:         o.Amount.Rat(),
			Vendor:         nullString(o.Vendor),
			TransactionID:  nullString(o.TransactionID),
			PaymentMethod:  nullString(o.PaymentMethod),
			LastFourDigits: nullString(o.LastFourDigits),
			Currency:       nullString(o.Currency),
			SourceID:       nullString(o.SourceID),
			ReportedTS:     report.CreatedAt,
		}
		if d, err := civil.ParseDate(o.Date); err == nil {
			row.Date = bigquery.NullDate{Date: d, Valid: true}
		}
		if o.LedgerID != nil {
			row.LedgerID = bigquery.NullInt64{Int64: *o.LedgerID, Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}

func nullString(s *string) bigquery.NullString {
	if s == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}
