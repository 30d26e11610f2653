package archive

import (
	"time"

	"github.com/cuongbtq/text-stream/internal/domain"
)

// Job is the archived row of a swept job
type Job struct {
	JobID          string     `db:"job_id"`
	OwnerID        string     `db:"owner_id"`
	InputText      string     `db:"input_text"`
	ProcessedText  string     `db:"processed_text"`
	Status         string     `db:"status"`
	TotalUnits     int        `db:"total_units"`
	ProcessedUnits int        `db:"processed_units"`
	ErrorMessage   string     `db:"error_message"`
	CreatedAt      time.Time  `db:"created_at"`
	StartedAt      *time.Time `db:"started_at"`
	CompletedAt    *time.Time `db:"completed_at"`
	ArchivedAt     time.Time  `db:"archived_at"`
}

func fromDomain(job domain.Job, archivedAt time.Time) Job {
	row := Job{
		JobID:          job.JobID,
		OwnerID:        job.OwnerID,
		InputText:      job.InputText,
		ProcessedText:  job.ProcessedText,
		Status:         job.Status.String(),
		TotalUnits:     job.TotalUnits,
		ProcessedUnits: job.ProcessedUnits,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt,
		ArchivedAt:     archivedAt,
	}
	if !job.StartedAt.IsZero() {
		startedAt := job.StartedAt
		row.StartedAt = &startedAt
	}
	if !job.CompletedAt.IsZero() {
		completedAt := job.CompletedAt
		row.CompletedAt = &completedAt
	}
	return row
}
