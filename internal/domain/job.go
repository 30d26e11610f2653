package domain

import "time"

// Job represents one text processing request tracked end to end
type Job struct {
	JobID          string
	OwnerID        string
	InputText      string
	ProcessedText  string
	Status         JobStatus
	TotalUnits     int
	ProcessedUnits int
	ErrorMessage   string
	CreatedAt      time.Time
	StartedAt      time.Time
	CompletedAt    time.Time
}

// JobView is the externally visible projection of a Job
type JobView struct {
	JobID          string     `json:"job_id"`
	InputText      string     `json:"input_text"`
	ProcessedText  string     `json:"processed_text,omitempty"`
	Status         string     `json:"status"`
	Progress       float64    `json:"progress"`
	TotalUnits     int        `json:"total_units"`
	ProcessedUnits int        `json:"processed_units"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Progress returns processed units as a percentage of the total
func (j Job) Progress() float64 {
	if j.TotalUnits <= 0 {
		return 0
	}
	return float64(j.ProcessedUnits) / float64(j.TotalUnits) * 100
}

// View projects the job for API responses and notifications
func (j Job) View() JobView {
	view := JobView{
		JobID:          j.JobID,
		InputText:      j.InputText,
		ProcessedText:  j.ProcessedText,
		Status:         j.Status.String(),
		Progress:       j.Progress(),
		TotalUnits:     j.TotalUnits,
		ProcessedUnits: j.ProcessedUnits,
		ErrorMessage:   j.ErrorMessage,
		CreatedAt:      j.CreatedAt,
	}
	if !j.StartedAt.IsZero() {
		startedAt := j.StartedAt
		view.StartedAt = &startedAt
	}
	if !j.CompletedAt.IsZero() {
		completedAt := j.CompletedAt
		view.CompletedAt = &completedAt
	}
	return view
}
