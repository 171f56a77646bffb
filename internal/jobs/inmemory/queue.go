package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dvloznov/receipt-ledger/internal/jobs"
	"github.com/dvloznov/receipt-ledger/internal/logger"
)

const defaultMaxRetries = 3

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// Jobs sharing a key (e.g. the same mailbox) never run concurrently: a job
// arriving while another with its key is running shares that run's result.
type Queue struct {
	jobChan    chan *jobs.IngestJob
	closeChan  chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
	store      jobs.JobStore
	group      singleflight.Group
	workers    int
	maxRetries int
	backoff    time.Duration
	closed     bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithWorkers sets the number of concurrent workers. Default 1.
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithMaxRetries sets the default retry budget of published jobs. Default 3.
func WithMaxRetries(n int) Option {
	return func(q *Queue) {
		if n >= 0 {
			q.maxRetries = n
		}
	}
}

// WithBackoff sets the base delay between retries. Default 1s; the delay grows
// linearly with the retry count.
func WithBackoff(d time.Duration) Option {
	return func(q *Queue) {
		q.backoff = d
	}
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishIngest blocks.
func NewQueue(bufferSize int, store jobs.JobStore, opts ...Option) *Queue {
	q := &Queue{
		jobChan:    make(chan *jobs.IngestJob, bufferSize),
		closeChan:  make(chan struct{}),
		store:      store,
		workers:    1,
		maxRetries: defaultMaxRetries,
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishIngest implements the Publisher interface.
func (q *Queue) PublishIngest(ctx context.Context, job *jobs.IngestJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.maxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.IngestJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().
		Str("job_id", job.JobID).
		Str("source", job.Source).
		Logger()
	ctx = logger.WithContext(ctx, log)

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	v, err, shared := q.group.Do(job.Key(), func() (interface{}, error) {
		return handler(ctx, job)
	})
	if shared {
		log.Info().Msg("Job collapsed into a concurrent run for the same source")
	}

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Error = err.Error()

		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			log.Warn().Err(err).Int("retry", job.RetryCount).Msg("Job failed, scheduling retry")

			if q.store != nil {
				_ = q.store.SaveJob(ctx, job)
			}

			retry := *job
			retry.Status = jobs.JobStatusPending
			retry.StartedAt = nil
			retry.CompletedAt = nil

			backoff := time.Duration(job.RetryCount) * q.backoff
			time.AfterFunc(backoff, func() {
				if err := q.PublishIngest(ctx, &retry); err != nil {
					log.Warn().Err(err).Msg("Failed to requeue job")
				}
			})
			return
		} else {
			job.Status = jobs.JobStatusFailed
			log.Error().Err(err).Msg("Job failed")
		}
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		if n, ok := v.(int); ok {
			job.Ingested = n
		}
		log.Info().Int("ingested", job.Ingested).Msg("Job completed")
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
