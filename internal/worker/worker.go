// Package worker runs queued jobs through the streaming transform with a
// bounded number of concurrent executions.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/cuongbtq/text-stream/internal/domain"
	"github.com/cuongbtq/text-stream/internal/notify"
	"github.com/cuongbtq/text-stream/internal/transform"
)

const (
	// DefaultPollInterval bounds how long the admission loop sleeps without a wake-up
	DefaultPollInterval = 100 * time.Millisecond

	// DefaultRetryBackoff is the pause after a failed queue read
	DefaultRetryBackoff = 500 * time.Millisecond
)

// ErrSchedulerStopped is returned by Enqueue after Stop
var ErrSchedulerStopped = errors.New("scheduler stopped")

// JobStore is the part of the job table the worker needs
type JobStore interface {
	GetJob(jobID string) (domain.Job, bool)
	MutateJob(jobID string, fn func(job *domain.Job) error) (domain.Job, error)
	Signal(jobID string) (context.Context, bool)
	Release(jobID string)
}

// Streamer runs the transform unit by unit
type Streamer interface {
	Stream(ctx context.Context, input string, onUnit transform.UnitFunc) (*transform.Result, error)
}

// Config holds worker configuration
type Config struct {
	Logger       *slog.Logger
	Store        JobStore
	Sink         notify.Sink
	Streamer     Streamer
	Queue        Queue
	Concurrency  int
	PollInterval time.Duration
	RetryBackoff time.Duration
}

// Worker is the job scheduler: a single admission loop feeding at most
// Concurrency executions at a time, in FIFO order
type Worker struct {
	logger       *slog.Logger
	store        JobStore
	sink         notify.Sink
	streamer     Streamer
	queue        Queue
	concurrency  int
	pollInterval time.Duration
	retryBackoff time.Duration
	now          func() time.Time

	mu       sync.Mutex
	inFlight int
	started  bool
	stopped  bool

	wg       sync.WaitGroup
	wake     chan struct{}
	stopChan chan struct{}
	loopDone chan struct{}
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 || pollInterval > DefaultPollInterval {
		pollInterval = DefaultPollInterval
	}

	retryBackoff := cfg.RetryBackoff
	if retryBackoff <= 0 {
		retryBackoff = DefaultRetryBackoff
	}

	queue := cfg.Queue
	if queue == nil {
		queue = NewMemoryQueue()
	}

	streamer := cfg.Streamer
	if streamer == nil {
		streamer = transform.NewStreamer(transform.StreamConfig{})
	}

	return &Worker{
		logger:       cfg.Logger,
		store:        cfg.Store,
		sink:         cfg.Sink,
		streamer:     streamer,
		queue:        queue,
		concurrency:  concurrency,
		pollInterval: pollInterval,
		retryBackoff: retryBackoff,
		now:          time.Now,
		wake:         make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
		loopDone:     make(chan struct{}),
	}
}

// Start runs the admission loop until ctx is canceled or Stop is called
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started || w.stopped {
		w.mu.Unlock()
		return errors.New("worker already started or stopped")
	}
	w.started = true
	w.mu.Unlock()

	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Duration("poll_interval", w.pollInterval),
	)

	w.admissionLoop(ctx)
	return nil
}

// Stop stops admitting jobs and waits for every in-flight job to reach a
// terminal state. Jobs still queued stay Pending.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	started := w.started
	w.mu.Unlock()

	w.logger.Info("Stopping worker...",
		slog.Int("in_flight", w.InFlight()),
	)

	close(w.stopChan)
	if q, ok := w.queue.(interface{ Close() }); ok {
		q.Close()
	}
	if started {
		<-w.loopDone
	}
	w.wg.Wait()

	if queued := w.queue.Len(); queued > 0 {
		w.logger.Warn("Worker stopped with queued jobs left pending",
			slog.Int("queued", queued),
		)
	}
	w.logger.Info("Worker stopped")
}

// Enqueue queues a job for execution
func (w *Worker) Enqueue(jobID string) error {
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()

	if stopped {
		return ErrSchedulerStopped
	}

	if err := w.queue.Enqueue(jobID); err != nil {
		return err
	}

	w.logger.Debug("Job enqueued",
		slog.String("job_id", jobID),
		slog.Int("queued", w.queue.Len()),
	)

	w.notifyWake()
	return nil
}

// InFlight returns the number of jobs currently executing
func (w *Worker) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight
}

// Queued returns the number of jobs waiting for a slot
func (w *Worker) Queued() int {
	return w.queue.Len()
}

// Concurrency returns the configured execution bound
func (w *Worker) Concurrency() int {
	return w.concurrency
}

func (w *Worker) notifyWake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}
