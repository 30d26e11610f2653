// Package retention periodically removes finished jobs from the job table
// so it does not grow without bound.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/text-stream/internal/domain"
)

// Purger removes terminal jobs created before now minus age and returns them
type Purger interface {
	PurgeOlderThan(age time.Duration) []domain.Job
}

// Archiver keeps a copy of removed jobs
type Archiver interface {
	ArchiveJobs(ctx context.Context, jobs []domain.Job) error
}

// Config holds sweeper configuration. Archiver is optional.
type Config struct {
	Logger   *slog.Logger
	Store    Purger
	Archiver Archiver
	Interval time.Duration
	MaxAge   time.Duration
}

// Stats captures the outcome of one sweep
type Stats struct {
	JobsRemoved  int  `json:"jobs_removed"`
	JobsArchived int  `json:"jobs_archived"`
	ArchiveError bool `json:"archive_error"`
}

// Sweeper runs the cleanup on a fixed interval
type Sweeper struct {
	logger   *slog.Logger
	store    Purger
	archiver Archiver
	interval time.Duration
	maxAge   time.Duration
}

// NewSweeper creates a new Sweeper
func NewSweeper(cfg *Config) *Sweeper {
	return &Sweeper{
		logger:   cfg.Logger,
		store:    cfg.Store,
		archiver: cfg.Archiver,
		interval: cfg.Interval,
		maxAge:   cfg.MaxAge,
	}
}

// Run sweeps every interval until ctx is canceled
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("Starting retention sweeper",
		slog.Duration("interval", s.interval),
		slog.Duration("max_age", s.maxAge),
		slog.Bool("archive", s.archiver != nil),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Retention sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep removes expired terminal jobs once and archives them when an
// archiver is configured. Archive failures are logged; removed jobs are not
// restored.
func (s *Sweeper) Sweep(ctx context.Context) Stats {
	removed := s.store.PurgeOlderThan(s.maxAge)
	stats := Stats{JobsRemoved: len(removed)}

	if len(removed) == 0 || s.archiver == nil {
		return stats
	}

	if err := s.archiver.ArchiveJobs(ctx, removed); err != nil {
		stats.ArchiveError = true
		s.logger.Error("Failed to archive expired jobs",
			slog.Int("count", len(removed)),
			slog.String("error", err.Error()),
		)
		return stats
	}

	stats.JobsArchived = len(removed)
	return stats
}
