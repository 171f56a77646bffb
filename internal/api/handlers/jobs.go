package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dvloznov/receipt-ledger/internal/api/middleware"
	"github.com/dvloznov/receipt-ledger/internal/jobs"
	"github.com/dvloznov/receipt-ledger/internal/logger"
)

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store     jobs.JobStore
	publisher jobs.Publisher
	sources   map[string]bool
}

// NewJobsHandler creates a new jobs handler. sources lists the document
// sources that are configured and may be ingested.
func NewJobsHandler(store jobs.JobStore, publisher jobs.Publisher, sources ...string) *JobsHandler {
	enabled := make(map[string]bool, len(sources))
	for _, s := range sources {
		enabled[s] = true
	}
	return &JobsHandler{
		store:     store,
		publisher: publisher,
		sources:   enabled,
	}
}

// FetchEmails handles POST /fetch-emails
func (h *JobsHandler) FetchEmails(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, jobs.SourceGmail, "Scheduled email fetch task.")
}

// EnqueueIngest handles POST /api/jobs with a {"source": "..."} body.
func (h *JobsHandler) EnqueueIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Source == "" {
		middleware.WriteError(w, http.StatusBadRequest, "source is required")
		return
	}

	h.enqueue(w, r, req.Source, "Scheduled ingestion task.")
}

func (h *JobsHandler) enqueue(w http.ResponseWriter, r *http.Request, source, message string) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if !h.sources[source] {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Source "+source+" is not configured")
		return
	}

	job := &jobs.IngestJob{Source: source}
	if err := h.publisher.PublishIngest(ctx, job); err != nil {
		log.Error().Err(err).Str("source", source).Msg("Failed to enqueue ingestion job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue ingestion job")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("source", source).Msg("Ingestion job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": message,
		"job_id":  job.JobID,
		"status":  string(job.Status),
	})
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := chi.URLParam(r, "id")

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			middleware.WriteError(w, http.StatusNotFound, "Job not found")
			return
		}
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := r.URL.Query()
	limit, offset := parsePage(r, 50, 500)
	filter := jobs.JobFilter{
		Source: query.Get("source"),
		Status: jobs.JobStatus(query.Get("status")),
		Limit:  limit,
		Offset: offset,
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
