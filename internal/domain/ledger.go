package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

const (
	// Unknown is the sentinel stored for receipt fields that could not be recovered.
	Unknown = "Unknown"

	// DefaultCurrency is applied when a receipt does not state its currency.
	DefaultCurrency = "INR"

	// DateLayout is the ISO calendar-date layout used for every date that crosses a boundary.
	DateLayout = "2006-01-02"
)

// LedgerRecord is a persisted transaction taken from the payer's own receipts.
// SourceID, when set, is unique across all records and is the ingestion idempotency key.
type LedgerRecord struct {
	ID             int64           `json:"id"`
	Date           civil.Date      `json:"date"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Vendor         string          `json:"vendor"`
	SourceID       *string         `json:"source_id,omitempty"`
	TransactionID  *string         `json:"transaction_id,omitempty"`
	PaymentMethod  *string         `json:"payment_method,omitempty"`
	LastFourDigits *string         `json:"last_digits,omitempty"`
	Currency       string          `json:"currency"`
	CreatedAt      time.Time       `json:"created_at"`
}

// RawTransaction is one line of an uploaded bank statement. It only lives for
// the duration of a reconciliation call.
type RawTransaction struct {
	Date           string          `json:"date"` // YYYY-MM-DD
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Vendor         *string         `json:"vendor,omitempty"`
	TransactionID  *string         `json:"transaction_id,omitempty"`
	PaymentMethod  *string         `json:"payment_method,omitempty"`
	LastFourDigits *string         `json:"last_digits,omitempty"`
	Currency       *string         `json:"currency,omitempty"`
}

// ExtractedReceipt is the output of the receipt extractor. Every field is
// populated; fields the extractor could not recover carry Unknown or DefaultCurrency.
type ExtractedReceipt struct {
	Date          civil.Date
	Amount        decimal.Decimal
	Description   string
	Vendor        string
	TransactionID string
	PaymentMethod string
	LastDigits    string
	Currency      string

	// Tier names the strategy that produced the receipt ("gemini", "heuristic").
	Tier string
}

// ToLedgerRecord builds the record to persist for this receipt. sourceID may be nil
// for documents that arrive without a reusable identifier.
func (r *ExtractedReceipt) ToLedgerRecord(sourceID *string) *LedgerRecord {
	return &LedgerRecord{
		Date:           r.Date,
		Description:    r.Description,
		Amount:         r.Amount,
		Vendor:         r.Vendor,
		SourceID:       sourceID,
		TransactionID:  optional(r.TransactionID),
		PaymentMethod:  optional(r.PaymentMethod),
		LastFourDigits: optional(r.LastDigits),
		Currency:       r.Currency,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
