// Package jobs runs analyses in the background and records each outcome as
// a report file named after the job.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"govai/internal/async"
	"govai/internal/logging"
	"govai/internal/observability"
	"govai/internal/report"
)

// State of a job.
type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateDone    State = "done"
	StateError   State = "error"
)

var (
	// ErrClosed is returned by Enqueue after Shutdown.
	ErrClosed = errors.New("job queue is shut down")
	// ErrQueueFull is returned when the backlog is at capacity.
	ErrQueueFull = errors.New("job queue is full")
)

// Runner produces the report for one job.
type Runner func(ctx context.Context, url string, principles any) (map[string]any, error)

// Job is a snapshot of one queued analysis.
type Job struct {
	ID         string
	URL        string
	State      State
	Error      string
	EnqueuedAt time.Time
	StartedAt  time.Time
	FinishedAt time.Time

	principles any
}

// Config wires a Queue.
type Config struct {
	Store         report.Store
	Runner        Runner
	MaxConcurrent int // default 1
	Backlog       int // default 1024
	Logger        logging.Logger
	Metrics       *observability.Metrics
	Tracer        *observability.TracerProvider
	Now           func() time.Time
}

// Queue executes jobs FIFO with at most MaxConcurrent running at once.
type Queue struct {
	store   report.Store
	runner  Runner
	logger  logging.Logger
	metrics *observability.Metrics
	tracer  *observability.TracerProvider
	now     func() time.Time

	mu      sync.Mutex
	jobs    map[string]*Job
	pending chan *Job
	closed  bool

	ctx     context.Context
	cancel  context.CancelFunc
	workers []<-chan struct{}
}

// New starts the workers.
func New(cfg Config) (*Queue, error) {
	if cfg.Runner == nil {
		return nil, errors.New("jobs: runner is required")
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = 1024
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("queue")
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		store:   cfg.Store,
		runner:  cfg.Runner,
		logger:  logger,
		metrics: cfg.Metrics,
		tracer:  cfg.Tracer,
		now:     cfg.Now,
		jobs:    make(map[string]*Job),
		pending: make(chan *Job, cfg.Backlog),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < cfg.MaxConcurrent; i++ {
		q.workers = append(q.workers, async.Go(logger, fmt.Sprintf("job-worker-%d", i), q.work))
	}
	return q, nil
}

// NewJobID returns a file-name-safe ISO timestamp with a short random
// suffix, so ids stay unique within the same millisecond.
func NewJobID(now time.Time) string {
	return report.SafeTimestamp(now) + "-" + uuid.NewString()[:8]
}

// Enqueue schedules an analysis of url.
func (q *Queue) Enqueue(url string, principles any) (Job, error) {
	now := q.now()
	job := &Job{
		ID:         NewJobID(now),
		URL:        url,
		State:      StateQueued,
		EnqueuedAt: now,
		principles: principles,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return Job{}, ErrClosed
	}
	select {
	case q.pending <- job:
	default:
		return Job{}, ErrQueueFull
	}
	q.jobs[job.ID] = job
	q.metrics.JobQueued()
	q.logger.Info("[queue] queued job %s url=%s", job.ID, url)
	return *job, nil
}

// Status returns the in-memory state of a job that has not finished yet.
// Finished jobs are only visible through their report file.
func (q *Queue) Status(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Len returns the number of queued and running jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Shutdown stops accepting jobs and waits for queued and running ones.
// When ctx expires first, running jobs are cancelled and ctx's error is
// returned.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.pending)
	}
	q.mu.Unlock()

	for _, done := range q.workers {
		select {
		case <-done:
		case <-ctx.Done():
			q.cancel()
			return ctx.Err()
		}
	}
	q.cancel()
	return nil
}

func (q *Queue) work() {
	for job := range q.pending {
		q.run(job)
	}
}

func (q *Queue) run(job *Job) {
	q.setState(job, StateRunning, nil)
	q.metrics.JobStarted()
	q.logger.Info("[queue] starting job %s", job.ID)

	ctx, span := q.tracer.StartSpan(q.ctx, observability.SpanJob,
		attribute.String(observability.AttrJobID, job.ID),
		attribute.String(observability.AttrURL, job.URL))
	rep, err := q.execute(ctx, job)

	var payload any = rep
	if err != nil {
		payload = report.ErrorReport(err)
	}
	if writeErr := q.store.Write(job.ID+".json", payload); writeErr != nil {
		q.logger.Error("[queue] job %s: write report: %v", job.ID, writeErr)
		if err == nil {
			err = writeErr
		}
	}
	observability.EndSpan(span, err)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		q.logger.Warn("[queue] job %s failed: %v", job.ID, err)
	}
	q.metrics.JobFinished(outcome)
	q.setState(job, StateDone, err)
	q.logger.Info("[queue] finished job %s", job.ID)

	q.mu.Lock()
	delete(q.jobs, job.ID)
	q.mu.Unlock()
}

func (q *Queue) execute(ctx context.Context, job *Job) (rep map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return q.runner(ctx, job.URL, job.principles)
}

func (q *Queue) setState(job *Job, state State, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	switch state {
	case StateRunning:
		job.StartedAt = now
	case StateDone:
		job.FinishedAt = now
		if err != nil {
			state = StateError
			job.Error = err.Error()
		}
	}
	job.State = state
}
