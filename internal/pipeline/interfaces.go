package pipeline

import (
	"context"

	"github.com/dvloznov/receipt-ledger/internal/domain"
)

// Extractor turns a receipt document into a structured receipt.
// extract.Chain is the production implementation.
type Extractor interface {
	Extract(ctx context.Context, doc []byte) (*domain.ExtractedReceipt, error)
}

// LedgerRepository is the persistence the pipeline needs.
type LedgerRepository interface {
	// InsertBatch persists records in a single transaction and returns how
	// many rows were written. Written records get their ID set; records the
	// store left out keep ID zero. On error nothing is written.
	InsertBatch(ctx context.Context, records []*domain.LedgerRecord) (int, error)

	// Insert persists one record and sets its ID and CreatedAt.
	Insert(ctx context.Context, record *domain.LedgerRecord) error

	// ListSourceIDs returns every non-null source id in the ledger.
	ListSourceIDs(ctx context.Context) ([]string, error)
}

// Source is a document source listed and fetched in two phases so that
// already-ingested documents are never downloaded.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, sourceID string) ([]byte, error)
}
