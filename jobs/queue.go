package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/tracekit/internal/shared/id"
	"github.com/GriffinCanCode/tracekit/tracing"
	"go.uber.org/zap"
)

// Span attributes set on every queued job
const (
	AttrJobID    = "job.id"
	AttrJobQueue = "job.queue"
)

var (
	ErrQueueFull   = errors.New("job queue full")
	ErrQueueClosed = errors.New("job queue closed")
	ErrNoHandler   = errors.New("no handler registered")
)

// Handler processes one job. The envelope's payload is still encoded; call
// Unwrap to decode it.
type Handler func(ctx context.Context, env Envelope) error

// Job is a serialized unit of work
type Job struct {
	ID         id.JobID
	Name       string
	Data       []byte
	EnqueuedAt time.Time
}

// Stats counts job outcomes
type Stats struct {
	Enqueued  int64
	Succeeded int64
	Failed    int64
	Rejected  int64
}

// Queue is an in-process job queue whose jobs travel as serialized
// envelopes.
type Queue struct {
	name    string
	client  *tracing.Client
	logger  *zap.Logger
	workers int

	mu       sync.RWMutex
	handlers map[string]Handler
	closed   bool

	jobs    chan Job
	wg      sync.WaitGroup
	started sync.Once
	done    chan struct{}

	enqueued  atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// Option configures a Queue
type Option func(*Queue)

// WithWorkers sets the number of worker goroutines (default 1)
func WithWorkers(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithCapacity sets how many jobs may wait (default 100)
func WithCapacity(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.jobs = make(chan Job, n)
		}
	}
}

// WithName names the queue in logs and spans (default "default")
func WithName(name string) Option {
	return func(q *Queue) { q.name = name }
}

// WithLogger sets the queue's logger (default: the client's)
func WithLogger(logger *zap.Logger) Option {
	return func(q *Queue) { q.logger = logger }
}

// NewQueue creates a stopped queue. Register handlers, then Start it.
func NewQueue(client *tracing.Client, opts ...Option) *Queue {
	q := &Queue{
		name:     "default",
		client:   client,
		logger:   client.Logger(),
		workers:  1,
		handlers: make(map[string]Handler),
		jobs:     make(chan Job, 100),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With(zap.String("queue", q.name))
	return q
}

// Register installs the handler for name, replacing any previous one.
func (q *Queue) Register(name string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = h
}

// Start launches the workers. Later calls do nothing.
func (q *Queue) Start() {
	q.started.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker()
		}
		q.logger.Debug("job queue started", zap.Int("workers", q.workers), zap.Int("capacity", cap(q.jobs)))
	})
}

// Enqueue wraps payload with ctx's trace context and queues it. It never
// blocks: a full queue returns ErrQueueFull.
func (q *Queue) Enqueue(ctx context.Context, name string, payload any) (id.JobID, error) {
	env, err := Wrap(ctx, payload)
	if err != nil {
		return "", err
	}
	data, err := env.Marshal()
	if err != nil {
		return "", err
	}

	job := Job{
		ID:         id.NewJobID(),
		Name:       name,
		Data:       data,
		EnqueuedAt: time.Now(),
	}

	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.rejected.Add(1)
		return "", ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		q.enqueued.Add(1)
		return job.ID, nil
	default:
		q.rejected.Add(1)
		return "", fmt.Errorf("enqueue %s: %w", name, ErrQueueFull)
	}
}

// Close stops accepting jobs and waits for the workers to drain the queue,
// or until ctx is done.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	// Workers that never started still need to drain
	q.Start()

	go func() {
		q.wg.Wait()
		close(q.done)
	}()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("job queue still draining: %w", ctx.Err())
	}
}

// Stats returns the queue's counters
func (q *Queue) Stats() Stats {
	return Stats{
		Enqueued:  q.enqueued.Load(),
		Succeeded: q.succeeded.Load(),
		Failed:    q.failed.Load(),
		Rejected:  q.rejected.Load(),
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for job := range q.jobs {
		q.execute(job)
	}
}

// execute runs one job. A panicking handler fails the job, not the worker.
func (q *Queue) execute(job Job) {
	defer func() {
		if r := recover(); r != nil {
			q.failed.Add(1)
			q.logger.Error("job panicked",
				zap.String("job_id", string(job.ID)),
				zap.String("job", job.Name),
				zap.Any("panic", r))
		}
	}()

	q.mu.RLock()
	h, ok := q.handlers[job.Name]
	q.mu.RUnlock()

	env := Decode(job.Data)
	err := Perform(context.Background(), q.client, job.Name, env, func(ctx context.Context, span *tracing.Span) error {
		if !ok {
			return fmt.Errorf("job %q: %w", job.Name, ErrNoHandler)
		}
		return h(ctx, env)
	}, tracing.WithAttributes(map[string]string{
		AttrJobID:    string(job.ID),
		AttrJobQueue: q.name,
	}))

	if err != nil {
		q.failed.Add(1)
		q.logger.Warn("job failed",
			zap.String("job_id", string(job.ID)),
			zap.String("job", job.Name),
			zap.Error(err))
		return
	}
	q.succeeded.Add(1)
	q.logger.Debug("job completed",
		zap.String("job_id", string(job.ID)),
		zap.String("job", job.Name),
		zap.Duration("latency", time.Since(job.EnqueuedAt)))
}
