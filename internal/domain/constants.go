package domain

// JobStatus is the lifecycle state of a job
type JobStatus string

// Job status constants
const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusCancelled JobStatus = "CANCELLED"
	JobStatusFailed    JobStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed from s
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusCancelled, JobStatusFailed:
		return true
	default:
		return false
	}
}

// IsCancellable reports whether a cancel request may still change the job
func (s JobStatus) IsCancellable() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// CanTransitionTo reports whether moving from s to next is a legal forward step.
// Pending may go to Running or Cancelled; Running may go to any terminal state.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusRunning || next == JobStatusCancelled
	case JobStatusRunning:
		return next.IsTerminal()
	default:
		return false
	}
}

func (s JobStatus) String() string {
	return string(s)
}
