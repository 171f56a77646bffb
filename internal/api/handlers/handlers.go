package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dvloznov/receipt-ledger/internal/api/middleware"
	"github.com/dvloznov/receipt-ledger/internal/domain"
	"github.com/dvloznov/receipt-ledger/internal/reconcile"
)

// uploadField is the multipart form field carrying uploaded files.
const uploadField = "file"

// ReceiptIngester stores a single uploaded receipt.
type ReceiptIngester interface {
	IngestOne(ctx context.Context, doc []byte) (*domain.LedgerRecord, error)
}

// StatementReconciler reconciles an uploaded bank statement against the ledger.
type StatementReconciler interface {
	ReconcileStatement(ctx context.Context, data []byte) (*reconcile.Report, error)
}

// LedgerLister pages through stored ledger records.
type LedgerLister interface {
	List(ctx context.Context, limit, offset int) ([]domain.LedgerRecord, int, error)
}

// Root handles GET /
func Root(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Ledger Reconciliation System is Live!",
	})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// readUpload returns the bytes of the multipart "file" field, capped at maxBytes.
func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	if r.ContentLength > maxBytes {
		return nil, &http.MaxBytesError{Limit: maxBytes}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, _, err := r.FormFile(uploadField)
	if err != nil {
		return nil, fmt.Errorf("missing %q field: %w", uploadField, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}

// writeUploadError maps upload read failures to 413 or 400.
func writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		middleware.WriteError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}
	middleware.WriteError(w, http.StatusBadRequest, err.Error())
}

// parsePage reads limit and offset query parameters.
func parsePage(r *http.Request, defaultLimit, maxLimit int) (limit, offset int) {
	query := r.URL.Query()
	limit = defaultLimit

	if limitStr := query.Get("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if v, err := strconv.Atoi(offsetStr); err == nil && v > 0 {
			offset = v
		}
	}
	return limit, offset
}
