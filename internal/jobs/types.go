package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned by a JobStore for unknown job ids.
var ErrJobNotFound = errors.New("job not found")

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeIngestSource represents a background ingestion of one document source.
	JobTypeIngestSource JobType = "ingest_source"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the job failed and is being retried.
	JobStatusRetrying JobStatus = "retrying"
)

// Source names accepted by IngestJob.Source.
const (
	SourceGmail = "gmail"
	SourceGCS   = "gcs"
)

// IngestJob represents a job to ingest every new document of a source.
type IngestJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Source names the document source to ingest, e.g. "gmail".
	Source string `json:"source"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Ingested is the number of ledger records written by the job.
	Ingested int `json:"ingested"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus

	// Key groups jobs that must not run concurrently.
	Key() string
}

// GetID implements the Job interface.
func (j *IngestJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *IngestJob) GetType() JobType {
	return JobTypeIngestSource
}

// GetStatus implements the Job interface.
func (j *IngestJob) GetStatus() JobStatus {
	return j.Status
}

// Key implements the Job interface. Jobs for the same source share a key.
func (j *IngestJob) Key() string {
	return string(JobTypeIngestSource) + ":" + j.Source
}

// Publisher defines the interface for publishing jobs to a queue.
type Publisher interface {
	// PublishIngest publishes a source ingestion job.
	PublishIngest(ctx context.Context, job *IngestJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job and returns the number of records it wrote.
// It should return an error if the job failed and should be retried.
type JobHandler func(ctx context.Context, job Job) (int, error)

// JobStore defines the interface for storing and retrieving job status.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *IngestJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*IngestJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*IngestJob, error)

	// UpdateJobStatus updates the status of a job.
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Source filters jobs by source name.
	Source string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
