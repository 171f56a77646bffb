package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/receipt-ledger/internal/api"
	"github.com/dvloznov/receipt-ledger/internal/api/handlers"
	"github.com/dvloznov/receipt-ledger/internal/domain"
	"github.com/dvloznov/receipt-ledger/internal/jobs"
	"github.com/dvloznov/receipt-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/receipt-ledger/internal/reconcile"
)

// MockReceiptIngester is a mock implementation of handlers.ReceiptIngester.
type MockReceiptIngester struct {
	IngestOneFunc func(ctx context.Context, doc []byte) (*domain.LedgerRecord, error)
}

func (m *MockReceiptIngester) IngestOne(ctx context.Context, doc []byte) (*domain.LedgerRecord, error) {
	return m.IngestOneFunc(ctx, doc)
}

// MockReconciler is a mock implementation of handlers.StatementReconciler.
type MockReconciler struct {
	ReconcileStatementFunc func(ctx context.Context, data []byte) (*reconcile.Report, error)
}

func (m *MockReconciler) ReconcileStatement(ctx context.Context, data []byte) (*reconcile.Report, error) {
	return m.ReconcileStatementFunc(ctx, data)
}

// MockLedgerLister is a mock implementation of handlers.LedgerLister.
type MockLedgerLister struct {
	ListFunc func(ctx context.Context, limit, offset int) ([]domain.LedgerRecord, int, error)
}

func (m *MockLedgerLister) List(ctx context.Context, limit, offset int) ([]domain.LedgerRecord, int, error) {
	return m.ListFunc(ctx, limit, offset)
}

// MockPublisher records published jobs.
type MockPublisher struct {
	published []*jobs.IngestJob
	err       error
}

func (m *MockPublisher) PublishIngest(ctx context.Context, job *jobs.IngestJob) error {
	if m.err != nil {
		return m.err
	}
	job.JobID = fmt.Sprintf("job-%d", len(m.published)+1)
	job.Status = jobs.JobStatusPending
	m.published = append(m.published, job)
	return nil
}

func (m *MockPublisher) Close() error { return nil }

// FailingJobStore is a jobs.JobStore whose reads always fail.
type FailingJobStore struct {
	err error
}

func (s *FailingJobStore) SaveJob(ctx context.Context, job *jobs.IngestJob) error { return s.err }

func (s *FailingJobStore) GetJob(ctx context.Context, jobID string) (*jobs.IngestJob, error) {
	return nil, s.err
}

func (s *FailingJobStore) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.IngestJob, error) {
	return nil, s.err
}

func (s *FailingJobStore) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	return s.err
}

type testServer struct {
	handler    http.Handler
	ingester   *MockReceiptIngester
	reconciler *MockReconciler
	ledger     *MockLedgerLister
	publisher  *MockPublisher
	store      *inmemory.Store
}

func newTestServer(maxUpload int64, sources ...string) *testServer {
	ts := &testServer{
		ingester:   &MockReceiptIngester{},
		reconciler: &MockReconciler{},
		ledger:     &MockLedgerLister{},
		publisher:  &MockPublisher{},
		store:      inmemory.NewStore(),
	}
	reports := cache.New(time.Minute, time.Minute)

	ts.handler = api.NewRouter(api.Handlers{
		Receipts:        handlers.NewReceiptsHandler(ts.ingester, maxUpload),
		Reconciliations: handlers.NewReconciliationsHandler(ts.reconciler, reports, maxUpload),
		Ledger:          handlers.NewLedgerHandler(ts.ledger),
		Jobs:            handlers.NewJobsHandler(ts.store, ts.publisher, sources...),
	}, api.RouterConfig{}, zerolog.Nop())

	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, path string, content []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "upload.bin")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestRootAndHealth(t *testing.T) {
	ts := newTestServer(1 << 20)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", rec.Code)
	}
	if msg := decodeBody(t, rec)["message"]; msg != "Ledger Reconciliation System is Live!" {
		t.Errorf("GET / message = %v", msg)
	}

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || decodeBody(t, rec)["status"] != "healthy" {
		t.Errorf("GET /health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestUploadReceipt(t *testing.T) {
	stored := &domain.LedgerRecord{
		ID:          7,
		Date:        civil.Date{Year: 2024, Month: time.January, Day: 5},
		Description: "Uber Ride",
		Amount:      decimal.RequireFromString("120.00"),
		Vendor:      "Uber",
		Currency:    "INR",
	}

	tests := []struct {
		name       string
		ingestErr  error
		wantStatus int
		wantKey    string
		wantValue  string
	}{
		{name: "stored", wantStatus: http.StatusOK, wantKey: "message", wantValue: "Receipt parsed and stored"},
		{name: "extraction failed", ingestErr: fmt.Errorf("IngestOne: %w", domain.ErrExtractionFailed), wantStatus: http.StatusUnprocessableEntity, wantKey: "message", wantValue: "Failed to parse receipt"},
		{name: "persistence failed", ingestErr: errors.New("disk full"), wantStatus: http.StatusInternalServerError, wantKey: "error", wantValue: "Failed to store receipt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(1 << 20)
			var got []byte
			ts.ingester.IngestOneFunc = func(ctx context.Context, doc []byte) (*domain.LedgerRecord, error) {
				got = doc
				if tt.ingestErr != nil {
					return nil, tt.ingestErr
				}
				return stored, nil
			}

			rec := ts.do(uploadRequest(t, "/upload-receipt", []byte("%PDF-1.4 receipt")))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			body := decodeBody(t, rec)
			if body[tt.wantKey] != tt.wantValue {
				t.Errorf("%s = %v, want %q", tt.wantKey, body[tt.wantKey], tt.wantValue)
			}
			if string(got) != "%PDF-1.4 receipt" {
				t.Errorf("ingester got %q", got)
			}
			if tt.ingestErr == nil {
				data := body["data"].(map[string]interface{})
				if data["description"] != "Uber Ride" || data["date"] != "2024-01-05" || data["amount"] != float64(120) {
					t.Errorf("data = %v", data)
				}
			}
		})
	}
}

func TestUploadRejectsBadRequests(t *testing.T) {
	ts := newTestServer(64)
	ts.ingester.IngestOneFunc = func(ctx context.Context, doc []byte) (*domain.LedgerRecord, error) {
		t.Fatal("ingester must not be called")
		return nil, nil
	}

	rec := ts.do(uploadRequest(t, "/upload-receipt", bytes.Repeat([]byte("x"), 1024)))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized upload status = %d, want 413", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/upload-receipt", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	rec = ts.do(req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("non-multipart status = %d, want 400", rec.Code)
	}
}

func TestUploadBankStatement(t *testing.T) {
	ts := newTestServer(1 << 20)
	report := &reconcile.Report{
		ID:        "rep-1",
		CreatedAt: time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC),
		Outcomes: []domain.Outcome{
			{Status: domain.StatusOnlyInBank, Date: "2024-01-05", Description: "UBER *RIDE FARE", Amount: decimal.RequireFromString("120")},
		},
		Summary: reconcile.Summary{OnlyInBank: 1},
	}
	ts.reconciler.ReconcileStatementFunc = func(ctx context.Context, data []byte) (*reconcile.Report, error) {
		if !strings.HasPrefix(string(data), "Date,") {
			t.Errorf("reconciler got %q", data)
		}
		return report, nil
	}

	rec := ts.do(uploadRequest(t, "/upload-bank-statement", []byte("Date,Category,Amount\n05/01/2024,UBER *RIDE FARE,120\n")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	outcomes, ok := body["reconciliation"].([]interface{})
	if !ok || len(outcomes) != 1 {
		t.Fatalf("reconciliation = %v", body["reconciliation"])
	}
	first := outcomes[0].(map[string]interface{})
	if first["status"] != "Only in Bank" || first["amount"] != float64(120) {
		t.Errorf("outcome = %v", first)
	}

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/reconciliations/rep-1", nil))
	if rec.Code != http.StatusOK || decodeBody(t, rec)["id"] != "rep-1" {
		t.Errorf("cached report lookup = %d %s", rec.Code, rec.Body.String())
	}

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/reconciliations/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown report status = %d, want 404", rec.Code)
	}
}

func TestUploadBankStatement_Errors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMissing []interface{}
	}{
		{
			name:        "missing columns",
			err:         fmt.Errorf("ReconcileStatement: %w", &domain.FormatError{Missing: []string{"amount"}}),
			wantStatus:  http.StatusBadRequest,
			wantMissing: []interface{}{"amount"},
		},
		{
			name:       "undecodable",
			err:        &domain.FormatError{Reason: "invalid UTF-8"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "ledger failure",
			err:        errors.New("database is locked"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(1 << 20)
			ts.reconciler.ReconcileStatementFunc = func(ctx context.Context, data []byte) (*reconcile.Report, error) {
				return nil, tt.err
			}

			rec := ts.do(uploadRequest(t, "/upload-bank-statement", []byte("Date,Category\n")))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			body := decodeBody(t, rec)
			var missing []interface{}
			if m, ok := body["missing"].([]interface{}); ok {
				missing = m
			}
			if diff := cmp.Diff(tt.wantMissing, missing); diff != "" {
				t.Errorf("missing mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListLedger(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", query: "", wantLimit: 100, wantOffset: 0},
		{name: "explicit", query: "?limit=5&offset=10", wantLimit: 5, wantOffset: 10},
		{name: "clamped", query: "?limit=5000", wantLimit: 1000, wantOffset: 0},
		{name: "invalid ignored", query: "?limit=abc&offset=-3", wantLimit: 100, wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(1 << 20)
			var gotLimit, gotOffset int
			ts.ledger.ListFunc = func(ctx context.Context, limit, offset int) ([]domain.LedgerRecord, int, error) {
				gotLimit, gotOffset = limit, offset
				return nil, 42, nil
			}

			rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/ledger"+tt.query, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if gotLimit != tt.wantLimit || gotOffset != tt.wantOffset {
				t.Errorf("List(limit=%d, offset=%d), want (%d, %d)", gotLimit, gotOffset, tt.wantLimit, tt.wantOffset)
			}

			body := decodeBody(t, rec)
			if body["total"] != float64(42) || body["count"] != float64(0) {
				t.Errorf("body = %v", body)
			}
			if records, ok := body["records"].([]interface{}); !ok || len(records) != 0 {
				t.Errorf("records = %v, want empty array", body["records"])
			}
		})
	}
}

func TestFetchEmails(t *testing.T) {
	ts := newTestServer(1<<20, jobs.SourceGmail)

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/fetch-emails", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["job_id"] != "job-1" || body["status"] != "pending" {
		t.Errorf("body = %v", body)
	}
	if len(ts.publisher.published) != 1 || ts.publisher.published[0].Source != jobs.SourceGmail {
		t.Errorf("published = %+v", ts.publisher.published)
	}
}

func TestEnqueueIngest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		publishErr error
		wantStatus int
	}{
		{name: "configured source", body: `{"source":"gcs"}`, wantStatus: http.StatusAccepted},
		{name: "unconfigured source", body: `{"source":"gmail"}`, wantStatus: http.StatusServiceUnavailable},
		{name: "missing source", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "invalid body", body: `{`, wantStatus: http.StatusBadRequest},
		{name: "queue closed", body: `{"source":"gcs"}`, publishErr: errors.New("queue is closed"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(1<<20, jobs.SourceGCS)
			ts.publisher.err = tt.publishErr

			rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/jobs", strings.NewReader(tt.body)))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestJobsEndpoints(t *testing.T) {
	ts := newTestServer(1 << 20)
	ctx := context.Background()
	_ = ts.store.SaveJob(ctx, &jobs.IngestJob{JobID: "a", Source: jobs.SourceGmail, Status: jobs.JobStatusCompleted, Ingested: 2, CreatedAt: time.Now()})
	_ = ts.store.SaveJob(ctx, &jobs.IngestJob{JobID: "b", Source: jobs.SourceGCS, Status: jobs.JobStatusFailed, CreatedAt: time.Now()})

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/jobs/a", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET job status = %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["ingested"] != float64(2) || body["source"] != "gmail" {
		t.Errorf("job = %v", body)
	}

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/jobs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing job status = %d, want 404", rec.Code)
	}

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/jobs?source=gcs", nil))
	if body := decodeBody(t, rec); body["count"] != float64(1) {
		t.Errorf("filtered list = %v", body)
	}
}

func TestStoreFailuresReturn500(t *testing.T) {
	storeErr := errors.New("database is locked")
	ledger := &MockLedgerLister{
		ListFunc: func(ctx context.Context, limit, offset int) ([]domain.LedgerRecord, int, error) {
			return nil, 0, storeErr
		},
	}
	reports := cache.New(time.Minute, time.Minute)
	handler := api.NewRouter(api.Handlers{
		Receipts:        handlers.NewReceiptsHandler(&MockReceiptIngester{}, 1<<20),
		Reconciliations: handlers.NewReconciliationsHandler(&MockReconciler{}, reports, 1<<20),
		Ledger:          handlers.NewLedgerHandler(ledger),
		Jobs:            handlers.NewJobsHandler(&FailingJobStore{err: storeErr}, &MockPublisher{}),
	}, api.RouterConfig{}, zerolog.Nop())

	tests := []struct {
		name      string
		path      string
		wantError string
	}{
		{name: "list ledger", path: "/api/ledger", wantError: "Failed to list ledger"},
		{name: "get job", path: "/api/jobs/a", wantError: "Failed to get job"},
		{name: "list jobs", path: "/api/jobs", wantError: "Failed to list jobs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500 (%s)", rec.Code, rec.Body.String())
			}
			if body := decodeBody(t, rec); body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", body["error"], tt.wantError)
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(1 << 20)
	rec := ts.do(httptest.NewRequest(http.MethodOptions, "/upload-receipt", nil))
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS header on preflight: %v", rec.Header())
	}
}
