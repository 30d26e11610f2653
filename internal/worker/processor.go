package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/text-stream/internal/domain"
	"github.com/cuongbtq/text-stream/internal/transform"
)

var (
	errNotPending = errors.New("job is not pending")
	errNotRunning = errors.New("job is not running")
)

// processJob runs one job from Pending to a terminal state and emits exactly
// one terminal notification for it
func (w *Worker) processJob(jobID string) {
	defer w.store.Release(jobID)

	// Notifications outlive the job signal
	ctx := context.Background()

	job, err := w.store.MutateJob(jobID, func(job *domain.Job) error {
		if job.Status != domain.JobStatusPending {
			return errNotPending
		}
		job.Status = domain.JobStatusRunning
		job.StartedAt = w.now()
		return nil
	})
	if err != nil {
		w.logger.Info("Skipping job",
			slog.String("job_id", jobID),
			slog.String("status", string(job.Status)),
			slog.String("reason", err.Error()),
		)
		return
	}

	signal, ok := w.store.Signal(jobID)
	if !ok {
		signal = context.Background()
	}

	w.logger.Info("Processing job",
		slog.String("job_id", jobID),
		slog.String("owner_id", job.OwnerID),
		slog.Int("total_units", job.TotalUnits),
	)

	result, err := w.executeJob(signal, job)

	switch {
	case err == nil:
		w.completeJob(ctx, job, result)
	case errors.Is(err, domain.ErrCancelled):
		w.cancelJob(ctx, job)
	default:
		w.failJob(ctx, job, err)
	}
}

// executeJob streams the transform and records progress after every unit.
// A panic in the transform is turned into a job error.
func (w *Worker) executeJob(ctx context.Context, job domain.Job) (result *transform.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewJobError(job.JobID, fmt.Errorf("panic: %v", r))
		}
	}()

	onUnit := func(unit string, position, total int) {
		updated, err := w.store.MutateJob(job.JobID, func(j *domain.Job) error {
			if j.Status != domain.JobStatusRunning {
				return errNotRunning
			}
			j.ProcessedUnits = position + 1
			return nil
		})
		if errors.Is(err, errNotRunning) {
			return
		}
		if err != nil {
			w.logger.Warn("Failed to record job progress",
				slog.String("job_id", job.JobID),
				slog.Int("position", position),
				slog.String("error", err.Error()),
			)
			return
		}

		w.sink.UnitProcessed(ctx, job.OwnerID, job.JobID, unit, updated.Progress())
	}

	return w.streamer.Stream(ctx, job.InputText, onUnit)
}

func (w *Worker) completeJob(ctx context.Context, job domain.Job, result *transform.Result) {
	updated, err := w.store.MutateJob(job.JobID, func(j *domain.Job) error {
		j.Status = domain.JobStatusCompleted
		j.ProcessedText = result.FormattedResult
		j.ProcessedUnits = j.TotalUnits
		j.CompletedAt = w.now()
		return nil
	})
	if err != nil {
		if updated.Status == domain.JobStatusCancelled {
			// Cancelled after the last unit but before finalization
			w.notifyCancelled(ctx, job)
			return
		}
		w.logger.Error("Failed to update job status to COMPLETED",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		return
	}

	w.logger.Info("Job completed successfully",
		slog.String("job_id", job.JobID),
		slog.Int("processed_units", updated.ProcessedUnits),
	)

	w.sink.JobCompleted(ctx, job.OwnerID, updated)
}

func (w *Worker) cancelJob(ctx context.Context, job domain.Job) {
	_, err := w.store.MutateJob(job.JobID, func(j *domain.Job) error {
		if j.Status == domain.JobStatusCancelled {
			return nil
		}
		j.Status = domain.JobStatusCancelled
		j.CompletedAt = w.now()
		return nil
	})
	if err != nil {
		w.logger.Error("Failed to update job status to CANCELLED",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}

	w.notifyCancelled(ctx, job)
}

func (w *Worker) notifyCancelled(ctx context.Context, job domain.Job) {
	w.logger.Info("Job cancelled",
		slog.String("job_id", job.JobID),
	)

	w.sink.JobCancelled(ctx, job.OwnerID, job.JobID)
}

func (w *Worker) failJob(ctx context.Context, job domain.Job, cause error) {
	w.logger.Error("Job execution failed",
		slog.String("job_id", job.JobID),
		slog.String("error", cause.Error()),
	)

	message := cause.Error()
	var jobErr *domain.JobError
	if errors.As(cause, &jobErr) {
		message = jobErr.Err.Error()
	}

	updated, err := w.store.MutateJob(job.JobID, func(j *domain.Job) error {
		j.Status = domain.JobStatusFailed
		j.ErrorMessage = message
		j.CompletedAt = w.now()
		return nil
	})
	if err != nil {
		if updated.Status == domain.JobStatusCancelled {
			w.notifyCancelled(ctx, job)
			return
		}
		w.logger.Error("Failed to update job status to FAILED",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		return
	}

	w.sink.JobFailed(ctx, job.OwnerID, job.JobID, message)
}
