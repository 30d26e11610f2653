// Package storage holds the in-memory job table. Every job is stored with its
// cancellation signal; all reads return copies and every mutation happens in a
// single critical section so concurrent read-modify-write cycles never lose
// updates.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/text-stream/internal/domain"
	"github.com/cuongbtq/text-stream/internal/transform"
	"github.com/google/uuid"
)

type entry struct {
	job    domain.Job
	seq    uint64
	signal context.Context
	cancel context.CancelFunc
}

// Storage handles all job table operations
type Storage struct {
	mu     sync.RWMutex
	jobs   map[string]*entry
	seq    uint64
	logger *slog.Logger
	now    func() time.Time
}

// NewStorage creates a new Storage instance
func NewStorage(logger *slog.Logger) *Storage {
	return &Storage{
		jobs:   make(map[string]*entry),
		logger: logger,
		now:    time.Now,
	}
}

// CreateJob stores a new Pending job owned by ownerID together with a fresh
// cancellation signal. TotalUnits is fixed here and never changes.
func (s *Storage) CreateJob(inputText, ownerID string) (domain.Job, error) {
	if strings.TrimSpace(inputText) == "" {
		return domain.Job{}, fmt.Errorf("%w: input text is required", domain.ErrInvalidArgument)
	}

	totalUnits, err := transform.UnitCount(inputText)
	if err != nil {
		return domain.Job{}, err
	}

	signal, cancel := context.WithCancel(context.Background())

	job := domain.Job{
		JobID:      uuid.New().String(),
		OwnerID:    ownerID,
		InputText:  inputText,
		Status:     domain.JobStatusPending,
		TotalUnits: totalUnits,
		CreatedAt:  s.now(),
	}

	s.mu.Lock()
	s.seq++
	s.jobs[job.JobID] = &entry{
		job:    job,
		seq:    s.seq,
		signal: signal,
		cancel: cancel,
	}
	s.mu.Unlock()

	s.logger.Debug("Job created",
		slog.String("job_id", job.JobID),
		slog.String("owner_id", ownerID),
		slog.Int("total_units", totalUnits),
	)

	return job, nil
}

// GetJob returns a copy of the job, or false if it does not exist
func (s *Storage) GetJob(jobID string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, false
	}
	return e.job, true
}

// UpdateJob replaces the stored job wholesale. Immutable fields and
// set-once timestamps are preserved, and backward status moves are rejected.
func (s *Storage) UpdateJob(job domain.Job) error {
	_, err := s.MutateJob(job.JobID, func(current *domain.Job) error {
		*current = job
		return nil
	})
	return err
}

// MutateJob applies fn to the stored job atomically. If fn returns an error
// nothing is written and the error is returned unchanged.
func (s *Storage) MutateJob(jobID string, fn func(job *domain.Job) error) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, jobID)
	}

	next := e.job
	if err := fn(&next); err != nil {
		return e.job, err
	}

	merged, err := merge(e.job, next)
	if err != nil {
		return e.job, err
	}

	e.job = merged
	return merged, nil
}

// merge enforces the job invariants on top of a caller-supplied change
func merge(current, next domain.Job) (domain.Job, error) {
	next.JobID = current.JobID
	next.OwnerID = current.OwnerID
	next.InputText = current.InputText
	next.TotalUnits = current.TotalUnits
	next.CreatedAt = current.CreatedAt

	if next.Status != current.Status && !current.Status.CanTransitionTo(next.Status) {
		return current, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, next.Status)
	}

	if !current.StartedAt.IsZero() {
		next.StartedAt = current.StartedAt
	}
	if !current.CompletedAt.IsZero() {
		next.CompletedAt = current.CompletedAt
	}

	if next.ProcessedUnits < current.ProcessedUnits {
		next.ProcessedUnits = current.ProcessedUnits
	}
	if next.ProcessedUnits > next.TotalUnits {
		next.ProcessedUnits = next.TotalUnits
	}

	return next, nil
}

// CancelJob triggers the job's cancellation signal and marks it Cancelled.
// It returns the status the job held before the call and false when the job
// is unknown or already terminal, in which case nothing changes.
func (s *Storage) CancelJob(jobID string) (domain.JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[jobID]
	if !ok {
		return "", false
	}

	previous := e.job.Status
	if !previous.IsCancellable() {
		return previous, false
	}

	e.cancel()
	e.job.Status = domain.JobStatusCancelled
	e.job.CompletedAt = s.now()

	s.logger.Info("Job cancelled",
		slog.String("job_id", jobID),
		slog.String("previous_status", previous.String()),
	)

	return previous, true
}

// Signal returns the job's cancellation signal
func (s *Storage) Signal(jobID string) (context.Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	return e.signal, true
}

// Release frees the resources held by the job's cancellation signal.
// It is safe to call more than once.
func (s *Storage) Release(jobID string) {
	s.mu.RLock()
	e, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if ok {
		e.cancel()
	}
}

// ListJobsByOwner returns the owner's jobs, newest first
func (s *Storage) ListJobsByOwner(ownerID string) []domain.Job {
	s.mu.RLock()
	snaps := make([]snapshot, 0)
	for _, e := range s.jobs {
		if e.job.OwnerID == ownerID {
			snaps = append(snaps, snapshot{job: e.job, seq: e.seq})
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(snaps)

	jobs := make([]domain.Job, len(snaps))
	for i, snap := range snaps {
		jobs[i] = snap.job
	}
	return jobs
}

// CleanupOlderThan removes terminal jobs created more than age ago and
// returns how many were removed
func (s *Storage) CleanupOlderThan(age time.Duration) int {
	return len(s.PurgeOlderThan(age))
}

// PurgeOlderThan removes terminal jobs created more than age ago and returns
// them, oldest first. Pending and Running jobs are never removed.
func (s *Storage) PurgeOlderThan(age time.Duration) []domain.Job {
	cutoff := s.now().Add(-age)

	s.mu.Lock()
	removed := make([]snapshot, 0)
	for id, e := range s.jobs {
		if !e.job.Status.IsTerminal() || !e.job.CreatedAt.Before(cutoff) {
			continue
		}
		e.cancel()
		delete(s.jobs, id)
		removed = append(removed, snapshot{job: e.job, seq: e.seq})
	}
	s.mu.Unlock()

	sortNewestFirst(removed)

	jobs := make([]domain.Job, len(removed))
	for i, snap := range removed {
		jobs[len(removed)-1-i] = snap.job
	}

	if len(jobs) > 0 {
		s.logger.Info("Expired jobs removed",
			slog.Int("count", len(jobs)),
			slog.Time("cutoff", cutoff),
		)
	}

	return jobs
}

// Len returns the number of stored jobs
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// snapshot is a job copied out under the lock, with its insertion order
type snapshot struct {
	job domain.Job
	seq uint64
}

func sortNewestFirst(snaps []snapshot) {
	sort.Slice(snaps, func(i, j int) bool {
		a, b := snaps[i], snaps[j]
		if !a.job.CreatedAt.Equal(b.job.CreatedAt) {
			return a.job.CreatedAt.After(b.job.CreatedAt)
		}
		return a.seq > b.seq
	})
}
