package handlers

import (
	"net/http"

	"github.com/dvloznov/receipt-ledger/internal/api/middleware"
	"github.com/dvloznov/receipt-ledger/internal/domain"
	"github.com/dvloznov/receipt-ledger/internal/logger"
)

const (
	defaultLedgerPageSize = 100
	maxLedgerPageSize     = 1000
)

// LedgerHandler handles ledger listing.
type LedgerHandler struct {
	ledger LedgerLister
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(ledger LedgerLister) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// ListLedger handles GET /api/ledger
func (h *LedgerHandler) ListLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := parsePage(r, defaultLedgerPageSize, maxLedgerPageSize)

	records, total, err := h.ledger.List(ctx, limit, offset)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to list ledger")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list ledger")
		return
	}

	if records == nil {
		records = []domain.LedgerRecord{}
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
		"total":   total,
	})
}
