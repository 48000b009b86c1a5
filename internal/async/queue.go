// Package async runs per-user sync jobs on a fixed worker pool.
package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/purchase-sync/internal/common"
	"github.com/joseph-ayodele/purchase-sync/internal/pipeline"
)

// Job asks for one user's mailbox to be synced.
type Job struct {
	UserID      string
	Since       time.Time
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Syncer is implemented by *pipeline.Service.
type Syncer interface {
	SyncUser(ctx context.Context, userID string, since time.Time) (pipeline.Report, error)
}

type SyncQueue struct {
	syncer  Syncer
	logger  *slog.Logger
	workers int
	timeout time.Duration
	onDone  func(Job, pipeline.Report, error)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool

	pendingMu sync.Mutex
	pending   map[string]bool
}

type Option func(*SyncQueue)

func WithWorkers(n int) Option {
	return func(q *SyncQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *SyncQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *SyncQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithOnDone registers a callback run after every job.
func WithOnDone(fn func(Job, pipeline.Report, error)) Option {
	return func(q *SyncQueue) { q.onDone = fn }
}

func NewSyncQueue(syncer Syncer, logger *slog.Logger, opts ...Option) *SyncQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &SyncQueue{
		syncer:  syncer,
		logger:  logger,
		workers: 4,
		timeout: 10 * time.Minute,
		ch:      make(chan Job, 256),
		pending: make(map[string]bool),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *SyncQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *SyncQueue) run(workerID int, job Job) {
	ctx := common.WithUserID(common.WithRequestID(context.Background(), job.TraceID), job.UserID)
	ctx, cancel := common.WithTimeout(ctx, q.timeout)
	report, err := q.syncer.SyncUser(ctx, job.UserID, job.Since)
	cancel()
	q.setPending(job.UserID, false)

	if err != nil {
		q.logger.Error("queue.job.failed", "worker_id", workerID, "user_id", job.UserID, "trace_id", job.TraceID, "error", err)
	} else {
		q.logger.Info("queue.job.done",
			"worker_id", workerID, "user_id", job.UserID, "trace_id", job.TraceID,
			"synced", report.Synced, "failed", report.Failed,
			"wait_ms", time.Since(job.SubmittedAt).Milliseconds(),
		)
	}
	if q.onDone != nil {
		q.onDone(job, report, err)
	}
}

// Enqueue schedules job unless a job for the same user is already waiting or
// running. It blocks while the queue is full.
func (q *SyncQueue) Enqueue(ctx context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	if job.TraceID == "" {
		job.TraceID = uuid.NewString()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "user_id", job.UserID)
		return nil
	}
	if !q.setPending(job.UserID, true) {
		q.logger.Info("queue.enqueue.already_pending", "user_id", job.UserID)
		return nil
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue.enqueue.backpressure", "user_id", job.UserID)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			q.setPending(job.UserID, false)
			return ctx.Err()
		}
	}
	q.logger.Info("queue.enqueue.ok", "user_id", job.UserID, "trace_id", job.TraceID)
	return nil
}

// setPending marks or clears a user; marking reports false if already marked.
func (q *SyncQueue) setPending(userID string, on bool) bool {
	q.pendingMu.Lock()
	defer q.pendingMu.Unlock()
	if !on {
		delete(q.pending, userID)
		return true
	}
	if q.pending[userID] {
		return false
	}
	q.pending[userID] = true
	return true
}

func (q *SyncQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
