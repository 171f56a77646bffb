package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/patrickmn/go-cache"

	"github.com/dvloznov/receipt-ledger/internal/api/middleware"
	"github.com/dvloznov/receipt-ledger/internal/domain"
	"github.com/dvloznov/receipt-ledger/internal/logger"
	"github.com/dvloznov/receipt-ledger/internal/reconcile"
)

// ReconciliationsHandler handles bank statement uploads and recent reports.
type ReconciliationsHandler struct {
	reconciler    StatementReconciler
	reports       *cache.Cache
	maxUploadSize int64
}

// NewReconciliationsHandler creates a new reconciliations handler. Reports are
// kept in reports under their id until the cache expires them.
func NewReconciliationsHandler(reconciler StatementReconciler, reports *cache.Cache, maxUploadSize int64) *ReconciliationsHandler {
	return &ReconciliationsHandler{
		reconciler:    reconciler,
		reports:       reports,
		maxUploadSize: maxUploadSize,
	}
}

// UploadBankStatement handles POST /upload-bank-statement
func (h *ReconciliationsHandler) UploadBankStatement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	data, err := readUpload(w, r, h.maxUploadSize)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	report, err := h.reconciler.ReconcileStatement(ctx, data)
	if err != nil {
		var formatErr *domain.FormatError
		if errors.As(err, &formatErr) {
			body := map[string]interface{}{"error": formatErr.Error()}
			if len(formatErr.Missing) > 0 {
				body["missing"] = formatErr.Missing
			}
			middleware.WriteJSON(w, http.StatusBadRequest, body)
			return
		}
		log.Error().Err(err).Msg("Failed to reconcile statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to reconcile statement")
		return
	}

	h.reports.SetDefault(report.ID, report)

	middleware.WriteJSON(w, http.StatusOK, report)
}

// GetReconciliation handles GET /api/reconciliations/{id}
func (h *ReconciliationsHandler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	cached, ok := h.reports.Get(id)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Reconciliation not found")
		return
	}

	report, ok := cached.(*reconcile.Report)
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, "Reconciliation not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, report)
}
