package domain

import "errors"

var (
	// ErrInvalidArgument is returned when the input text is empty or missing
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrJobNotFound is returned when a job cannot be found in the store
	ErrJobNotFound = errors.New("job not found")

	// ErrForbidden is returned when a requester does not own the job
	ErrForbidden = errors.New("requester does not own the job")

	// ErrConflict is returned when a job is already in a terminal state
	ErrConflict = errors.New("job already finished")

	// ErrCancelled is returned by job execution that observed its cancellation signal
	ErrCancelled = errors.New("job cancelled")

	// ErrUnavailable is returned when the service no longer accepts work
	ErrUnavailable = errors.New("service unavailable")

	// ErrInvalidTransition is returned when a status change would move backwards
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// JobError wraps an unexpected failure raised while executing a job
type JobError struct {
	JobID string
	Err   error
}

func (e *JobError) Error() string {
	return "job " + e.JobID + " failed: " + e.Err.Error()
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// NewJobError creates a new job error
func NewJobError(jobID string, err error) error {
	return &JobError{JobID: jobID, Err: err}
}
