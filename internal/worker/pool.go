package worker

import (
	"context"
	"log/slog"
	"time"
)

// admissionLoop moves queued jobs into execution slots. It wakes on Enqueue,
// on a finished job, and on every poll tick.
func (w *Worker) admissionLoop(ctx context.Context) {
	defer close(w.loopDone)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.admit(ctx)

		select {
		case <-w.stopChan:
			w.logger.Info("Admission loop stopping - stopChan closed")
			return

		case <-ctx.Done():
			w.logger.Info("Admission loop stopping - context canceled")
			return

		case <-w.wake:
		case <-ticker.C:
		}
	}
}

// admit dispatches queued jobs while there is a free slot
func (w *Worker) admit(ctx context.Context) {
	for w.hasCapacity() {
		if w.isStopping(ctx) {
			return
		}

		jobID, ok, err := w.queue.Dequeue()
		if err != nil {
			w.logger.Error("Failed to read from job queue",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", w.retryBackoff),
			)
			w.backoff(ctx)
			return
		}
		if !ok {
			return
		}

		w.dispatch(jobID)
	}
}

func (w *Worker) hasCapacity() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight < w.concurrency
}

func (w *Worker) isStopping(ctx context.Context) bool {
	select {
	case <-w.stopChan:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (w *Worker) backoff(ctx context.Context) {
	timer := time.NewTimer(w.retryBackoff)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-w.stopChan:
	case <-ctx.Done():
	}
}

// dispatch claims a slot and runs the job in its own goroutine
func (w *Worker) dispatch(jobID string) {
	w.mu.Lock()
	w.inFlight++
	inFlight := w.inFlight
	w.mu.Unlock()

	w.wg.Add(1)

	w.logger.Debug("Job admitted",
		slog.String("job_id", jobID),
		slog.Int("in_flight", inFlight),
	)

	go func() {
		defer w.wg.Done()
		defer w.release()

		w.processJob(jobID)
	}()
}

func (w *Worker) release() {
	w.mu.Lock()
	w.inFlight--
	w.mu.Unlock()

	w.notifyWake()
}
