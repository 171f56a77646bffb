package domain

import "github.com/shopspring/decimal"

// Status tags a reconciliation outcome.
type Status string

const (
	StatusMatched      Status = "Matched"
	StatusOnlyInLedger Status = "Only in Ledger"
	StatusOnlyInBank   Status = "Only in Bank"
)

// Outcome is one line of a reconciliation report. Matched and Only in Ledger
// outcomes carry the ledger record's fields; Only in Bank outcomes carry the
// bank line's fields.
type Outcome struct {
	Status         Status          `json:"status"`
	Date           string          `json:"date"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Vendor         *string         `json:"vendor,omitempty"`
	TransactionID  *string         `json:"transaction_id,omitempty"`
	PaymentMethod  *string         `json:"payment_method,omitempty"`
	LastFourDigits *string         `json:"last_digits,omitempty"`
	Currency       *string         `json:"currency,omitempty"`
	SourceID       *string         `json:"source_id,omitempty"`
	LedgerID       *int64          `json:"ledger_id,omitempty"`
}

// LedgerOutcome builds an outcome from a ledger record.
func LedgerOutcome(status Status, l *LedgerRecord) Outcome {
	id := l.ID
	vendor := l.Vendor
	currency := l.Currency
	return Outcome{
		Status:         status,
		Date:           l.Date.String(),
		Description:    l.Description,
		Amount:         l.Amount,
		Vendor:         &vendor,
		TransactionID:  l.TransactionID,
		PaymentMethod:  l.PaymentMethod,
		LastFourDigits: l.LastFourDigits,
		Currency:       &currency,
		SourceID:       l.SourceID,
		LedgerID:       &id,
	}
}

// BankOutcome builds an Only in Bank outcome from a statement line.
func BankOutcome(b *RawTransaction) Outcome {
	return Outcome{
		Status:         StatusOnlyInBank,
		Date:           b.Date,
		Description:    b.Description,
		Amount:         b.Amount,
		Vendor:         b.Vendor,
		TransactionID:  b.TransactionID,
		PaymentMethod:  b.PaymentMethod,
		LastFourDigits: b.LastFourDigits,
		Currency:       b.Currency,
	}
}
