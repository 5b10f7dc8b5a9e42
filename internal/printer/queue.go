package printer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JobStatus is the lifecycle state of a print job
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobPrinting  JobStatus = "printing"
	JobFailed    JobStatus = "failed"
	JobCompleted JobStatus = "completed"
)

// ErrQueueFull is returned when the number of pending jobs reaches the queue size
var ErrQueueFull = errors.New("print queue is full")

// PrintJob represents a print job
type PrintJob struct {
	ID          string     `json:"id"`
	PrinterID   string     `json:"printer_id"`
	Payload     []byte     `json:"-"`
	Size        int        `json:"size"`
	Retries     int        `json:"retries"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	nextAttempt time.Time
	done        chan struct{}
}

// Finished reports whether the job reached a terminal state
func (j *PrintJob) Finished() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

// QueueOptions configures retries and capacity
type QueueOptions struct {
	MaxRetries int
	RetryDelay time.Duration
	Size       int
}

// PrintQueue manages print jobs with retry logic
type PrintQueue struct {
	jobs    []*PrintJob
	mu      sync.Mutex
	pool    *ConnectionPool
	manager *Manager
	opts    QueueOptions
	events  *EventBus
	logger  *zap.Logger
	wake    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPrintQueue creates a new print queue and starts its worker
func NewPrintQueue(pool *ConnectionPool, manager *Manager, opts QueueOptions, events *EventBus, logger *zap.Logger) *PrintQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	q := &PrintQueue{
		jobs:    make([]*PrintJob, 0),
		pool:    pool,
		manager: manager,
		opts:    opts,
		events:  events,
		logger:  logger.With(zap.String("component", "queue")),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}

	q.wg.Add(1)
	go q.worker()

	return q
}

// Enqueue adds a print job and returns its ID
func (q *PrintQueue) Enqueue(printerID string, payload []byte) (string, error) {
	q.mu.Lock()

	if q.opts.Size > 0 && q.pendingLocked() >= q.opts.Size {
		q.mu.Unlock()
		return "", ErrQueueFull
	}

	job := &PrintJob{
		ID:        uuid.New().String(),
		PrinterID: printerID,
		Payload:   append([]byte(nil), payload...),
		Size:      len(payload),
		Status:    JobQueued,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	q.logger.Debug("Job queued", zap.String("job_id", job.ID), zap.String("printer_id", printerID), zap.Int("bytes", job.Size))
	q.publish(EventJobQueued, job)
	q.notify()

	return job.ID, nil
}

// Wait blocks until the job finishes or ctx ends
func (q *PrintQueue) Wait(ctx context.Context, jobID string) (*PrintJob, error) {
	q.mu.Lock()
	var done chan struct{}
	for _, job := range q.jobs {
		if job.ID == jobID {
			done = job.done
			break
		}
	}
	q.mu.Unlock()

	if done == nil {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}

	select {
	case <-done:
		return q.GetJob(jobID), nil
	case <-ctx.Done():
		return q.GetJob(jobID), ctx.Err()
	}
}

func (q *PrintQueue) pendingLocked() int {
	n := 0
	for _, job := range q.jobs {
		if !job.Finished() {
			n++
		}
	}
	return n
}

func (q *PrintQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// worker processes print jobs
func (q *PrintQueue) worker() {
	defer q.wg.Done()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
		case <-ticker.C:
		}
		for q.processNextJob() {
		}
	}
}

// processNextJob runs one due job and reports whether one was found
func (q *PrintQueue) processNextJob() bool {
	now := time.Now()

	q.mu.Lock()
	var job *PrintJob
	for _, j := range q.jobs {
		if j.Status == JobQueued && !now.Before(j.nextAttempt) {
			job = j
			job.Status = JobPrinting
			break
		}
	}
	q.mu.Unlock()

	if job == nil {
		return false
	}

	q.publish(EventJobPrinting, job)
	err := q.printJob(job)

	q.mu.Lock()
	var event EventType
	if err != nil {
		job.Retries++
		job.Error = err.Error()

		if job.Retries > q.opts.MaxRetries {
			job.Status = JobFailed
			finished := time.Now()
			job.CompletedAt = &finished
			close(job.done)
			event = EventJobFailed
			q.logger.Error("Print job failed",
				zap.String("job_id", job.ID),
				zap.Int("retries", job.Retries-1),
				zap.Error(err),
			)
		} else {
			job.Status = JobQueued
			job.nextAttempt = time.Now().Add(q.opts.RetryDelay)
			event = EventJobRetrying
			q.logger.Warn("Print job failed, retrying",
				zap.String("job_id", job.ID),
				zap.Int("attempt", job.Retries),
				zap.Int("max_retries", q.opts.MaxRetries),
				zap.Error(err),
			)
		}
	} else {
		job.Status = JobCompleted
		job.Error = ""
		finished := time.Now()
		job.CompletedAt = &finished
		close(job.done)
		event = EventJobCompleted
		q.logger.Info("Print job completed", zap.String("job_id", job.ID), zap.Int("bytes", job.Size))
	}
	q.mu.Unlock()

	q.publish(event, job)
	return event != EventJobRetrying
}

func (q *PrintQueue) printJob(job *PrintJob) error {
	if !q.pool.IsConnected(job.PrinterID) {
		printer := q.manager.GetPrinter(job.PrinterID)
		if printer == nil {
			return fmt.Errorf("%w: %s", ErrPrinterNotFound, job.PrinterID)
		}

		if err := q.pool.Connect(q.ctx, printer); err != nil {
			return fmt.Errorf("failed to connect to printer: %w", err)
		}
	}

	return q.pool.Send(q.ctx, job.PrinterID, job.Payload)
}

// GetJob returns a copy of a job by ID
func (q *PrintQueue) GetJob(jobID string) *PrintJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range q.jobs {
		if job.ID == jobID {
			jobCopy := *job
			return &jobCopy
		}
	}

	return nil
}

// GetAllJobs returns copies of all jobs in submission order
func (q *PrintQueue) GetAllJobs() []*PrintJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := make([]*PrintJob, len(q.jobs))
	for i, job := range q.jobs {
		jobCopy := *job
		jobs[i] = &jobCopy
	}

	return jobs
}

// ClearCompleted removes completed jobs and returns how many were removed
func (q *PrintQueue) ClearCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	filtered := make([]*PrintJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		if job.Status != JobCompleted {
			filtered = append(filtered, job)
		}
	}

	removed := len(q.jobs) - len(filtered)
	q.jobs = filtered
	return removed
}

// Stop stops the print queue worker
func (q *PrintQueue) Stop() {
	q.cancel()
	q.wg.Wait()
}

func (q *PrintQueue) publish(t EventType, job *PrintJob) {
	if q.events == nil {
		return
	}

	q.mu.Lock()
	jobCopy := *job
	q.mu.Unlock()

	q.events.Publish(Event{Type: t, PrinterID: jobCopy.PrinterID, Data: jobCopy})
}
