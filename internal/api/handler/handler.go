package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/cuongbtq/text-stream/internal/domain"
	"github.com/cuongbtq/text-stream/internal/notify"
)

// ConnectionHeader carries the caller's connection ID, which is also the
// owner ID of every job it creates
const ConnectionHeader = "X-Connection-ID"

// DefaultHeartbeatInterval is how often an idle SSE stream sends a ping
const DefaultHeartbeatInterval = 15 * time.Second

// JobService is the job gate used by the handlers
type JobService interface {
	CreateJob(ctx context.Context, text, ownerID string) (domain.JobView, error)
	GetJob(jobID string) (domain.JobView, error)
	ListJobs(ownerID string) []domain.JobView
	CancelJob(ctx context.Context, jobID, requesterID string) error
}

// StreamHub manages push connections and job topics
type StreamHub interface {
	Register(connectionID string) (*notify.Connection, error)
	Unregister(connectionID string)
	Join(connectionID, jobID string) error
	Leave(connectionID, jobID string)
	Count() int
}

// SchedulerStats exposes scheduler load for the health endpoint
type SchedulerStats interface {
	Concurrency() int
	InFlight() int
	Queued() int
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger            *slog.Logger
	ServiceName       string
	Jobs              JobService
	Hub               StreamHub
	Scheduler         SchedulerStats
	HeartbeatInterval time.Duration
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger            *slog.Logger
	serviceName       string
	jobs              JobService
	hub               StreamHub
	scheduler         SchedulerStats
	heartbeatInterval time.Duration
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}

	return &JobHandler{
		logger:            deps.Logger,
		serviceName:       deps.ServiceName,
		jobs:              deps.Jobs,
		hub:               deps.Hub,
		scheduler:         deps.Scheduler,
		heartbeatInterval: heartbeat,
	}
}
