// Package jobs is the ingress gate of the job service. It creates jobs,
// hands them to the scheduler and enforces that only the owning connection
// can cancel or delete a job.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cuongbtq/text-stream/internal/domain"
	"github.com/cuongbtq/text-stream/internal/notify"
)

// Store is the part of the job table the gate needs
type Store interface {
	CreateJob(inputText, ownerID string) (domain.Job, error)
	GetJob(jobID string) (domain.Job, bool)
	CancelJob(jobID string) (domain.JobStatus, bool)
	ListJobsByOwner(ownerID string) []domain.Job
}

// Scheduler accepts job IDs for execution
type Scheduler interface {
	Enqueue(jobID string) error
}

// Config holds manager dependencies
type Config struct {
	Logger    *slog.Logger
	Store     Store
	Scheduler Scheduler
	Sink      notify.Sink
}

// Manager implements the job operations exposed to clients
type Manager struct {
	logger    *slog.Logger
	store     Store
	scheduler Scheduler
	sink      notify.Sink
}

// NewManager creates a new Manager instance
func NewManager(cfg *Config) *Manager {
	return &Manager{
		logger:    cfg.Logger,
		store:     cfg.Store,
		scheduler: cfg.Scheduler,
		sink:      cfg.Sink,
	}
}

// AuthorizeCancel reports whether requesterID may cancel the job
func AuthorizeCancel(job domain.Job, requesterID string) bool {
	return job.OwnerID == requesterID
}

// CreateJob stores a new Pending job and queues it for execution
func (m *Manager) CreateJob(ctx context.Context, text, ownerID string) (domain.JobView, error) {
	if strings.TrimSpace(ownerID) == "" {
		return domain.JobView{}, fmt.Errorf("%w: owner id is required", domain.ErrInvalidArgument)
	}

	job, err := m.store.CreateJob(text, ownerID)
	if err != nil {
		return domain.JobView{}, err
	}

	if err := m.scheduler.Enqueue(job.JobID); err != nil {
		// The job never ran and nobody was told about it, so drop it quietly
		m.store.CancelJob(job.JobID)
		m.logger.ErrorContext(ctx, "Failed to enqueue job",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		return domain.JobView{}, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	m.logger.InfoContext(ctx, "Job created",
		slog.String("job_id", job.JobID),
		slog.String("owner_id", ownerID),
		slog.Int("total_units", job.TotalUnits),
	)

	return job.View(), nil
}

// GetJob returns the job's public view
func (m *Manager) GetJob(jobID string) (domain.JobView, error) {
	job, ok := m.store.GetJob(jobID)
	if !ok {
		return domain.JobView{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}
	return job.View(), nil
}

// ListJobs returns the owner's jobs, newest first
func (m *Manager) ListJobs(ownerID string) []domain.JobView {
	jobs := m.store.ListJobsByOwner(ownerID)

	views := make([]domain.JobView, len(jobs))
	for i, job := range jobs {
		views[i] = job.View()
	}
	return views
}

// CancelJob requests cancellation of a Pending or Running job. A Pending job
// never reaches the scheduler, so its cancellation is announced here; a
// Running job is announced by the scheduler once it stops.
func (m *Manager) CancelJob(ctx context.Context, jobID, requesterID string) error {
	job, ok := m.store.GetJob(jobID)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}

	if !AuthorizeCancel(job, requesterID) {
		m.logger.WarnContext(ctx, "Cancel rejected for non-owner",
			slog.String("job_id", jobID),
			slog.String("requester_id", requesterID),
		)
		return fmt.Errorf("%w: %s", domain.ErrForbidden, jobID)
	}

	previous, ok := m.store.CancelJob(jobID)
	if !ok {
		if previous == "" {
			return fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
		}
		return fmt.Errorf("%w: job is %s", domain.ErrConflict, previous)
	}

	m.logger.InfoContext(ctx, "Job cancellation requested",
		slog.String("job_id", jobID),
		slog.String("previous_status", previous.String()),
	)

	if previous == domain.JobStatusPending {
		m.sink.JobCancelled(ctx, job.OwnerID, jobID)
	}

	return nil
}
