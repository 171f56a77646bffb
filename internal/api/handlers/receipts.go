package handlers

import (
	"errors"
	"net/http"

	"github.com/dvloznov/receipt-ledger/internal/api/middleware"
	"github.com/dvloznov/receipt-ledger/internal/domain"
	"github.com/dvloznov/receipt-ledger/internal/logger"
)

// ReceiptsHandler handles receipt uploads.
type ReceiptsHandler struct {
	ingester      ReceiptIngester
	maxUploadSize int64
}

// NewReceiptsHandler creates a new receipts handler.
func NewReceiptsHandler(ingester ReceiptIngester, maxUploadSize int64) *ReceiptsHandler {
	return &ReceiptsHandler{ingester: ingester, maxUploadSize: maxUploadSize}
}

// UploadReceipt handles POST /upload-receipt
func (h *ReceiptsHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	data, err := readUpload(w, r, h.maxUploadSize)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	record, err := h.ingester.IngestOne(ctx, data)
	if err != nil {
		if errors.Is(err, domain.ErrExtractionFailed) {
			log.Warn().Err(err).Msg("Receipt upload could not be parsed")
			middleware.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"message": "Failed to parse receipt",
			})
			return
		}
		log.Error().Err(err).Msg("Failed to store receipt")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store receipt")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Receipt parsed and stored",
		"data":    record,
	})
}
