// Package archive keeps an audit copy of jobs removed by the retention
// sweep. Rows are only ever inserted; nothing reads them back into the
// job table.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/text-stream/internal/domain"
)

const schema = `
	CREATE TABLE IF NOT EXISTS archived_jobs (
		job_id          TEXT PRIMARY KEY,
		owner_id        TEXT NOT NULL,
		input_text      TEXT NOT NULL,
		processed_text  TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL,
		total_units     INTEGER NOT NULL,
		processed_units INTEGER NOT NULL,
		error_message   TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL,
		started_at      TIMESTAMPTZ,
		completed_at    TIMESTAMPTZ,
		archived_at     TIMESTAMPTZ NOT NULL
	)
`

const insertQuery = `
	INSERT INTO archived_jobs (
		job_id, owner_id, input_text, processed_text,
		status, total_units, processed_units, error_message,
		created_at, started_at, completed_at, archived_at
	) VALUES (
		:job_id, :owner_id, :input_text, :processed_text,
		:status, :total_units, :processed_units, :error_message,
		:created_at, :started_at, :completed_at, :archived_at
	)
	ON CONFLICT (job_id) DO NOTHING
`

// DB is the subset of the PostgreSQL client the archive uses
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) error
	NamedExecContext(ctx context.Context, query string, arg interface{}) (int64, error)
}

// Storage writes swept jobs to PostgreSQL
type Storage struct {
	db     DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStorage creates a new archive Storage
func NewStorage(db DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// EnsureSchema creates the archive table if it does not exist
func (s *Storage) EnsureSchema(ctx context.Context) error {
	if err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create archive schema: %w", err)
	}
	return nil
}

// ArchiveJobs inserts the jobs in one statement. Jobs already archived are
// skipped.
func (s *Storage) ArchiveJobs(ctx context.Context, jobs []domain.Job) error {
	if len(jobs) == 0 {
		return nil
	}

	archivedAt := s.now()
	rows := make([]Job, len(jobs))
	for i, job := range jobs {
		rows[i] = fromDomain(job, archivedAt)
	}

	inserted, err := s.db.NamedExecContext(ctx, insertQuery, rows)
	if err != nil {
		return fmt.Errorf("failed to archive jobs: %w", err)
	}

	s.logger.Info("Jobs archived",
		slog.Int("count", len(rows)),
		slog.Int64("inserted", inserted),
	)
	return nil
}
