package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cuongbtq/text-stream/internal/api/dto"
	"github.com/cuongbtq/text-stream/internal/domain"
	"github.com/cuongbtq/text-stream/internal/notify"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// requireConnectionID reads the caller's connection ID or writes a 400
func requireConnectionID(c *gin.Context) (string, bool) {
	connectionID := strings.TrimSpace(c.GetHeader(ConnectionHeader))
	if connectionID == "" {
		badRequest(c, ConnectionHeader+" header is required")
		return "", false
	}
	return connectionID, true
}

// requireJobID reads and validates the :job_id path parameter or writes a 400
func requireJobID(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		badRequest(c, "job_id must be a valid UUID")
		return "", false
	}
	return jobID, true
}

// Health handles GET /health
func (h *JobHandler) Health(c *gin.Context) {
	resp := dto.HealthResponse{
		Status:  "healthy",
		Service: h.serviceName,
	}
	if h.scheduler != nil {
		resp.Concurrency = h.scheduler.Concurrency()
		resp.InFlight = h.scheduler.InFlight()
		resp.Queued = h.scheduler.Queued()
	}
	if h.hub != nil {
		resp.Connections = h.hub.Count()
	}
	c.JSON(http.StatusOK, resp)
}

// CreateJob handles POST /api/v1/jobs
// Creates a job owned by the calling connection and queues it
func (h *JobHandler) CreateJob(c *gin.Context) {
	connectionID, ok := requireConnectionID(c)
	if !ok {
		return
	}

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		badRequest(c, "text is required")
		return
	}

	view, err := h.jobs.CreateJob(c.Request.Context(), req.Text, connectionID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, view)
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := requireJobID(c)
	if !ok {
		return
	}

	view, err := h.jobs.GetJob(jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ListJobs handles GET /api/v1/jobs
// Lists the calling connection's jobs, newest first, with cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	connectionID, ok := requireConnectionID(c)
	if !ok {
		return
	}

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters")
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	status := domain.JobStatus(strings.ToUpper(req.Status))
	if req.Status != "" && !isKnownStatus(status) {
		badRequest(c, "Invalid status filter")
		return
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		badRequest(c, "Invalid cursor")
		return
	}

	jobs := h.jobs.ListJobs(connectionID)
	if req.Status != "" {
		filtered := jobs[:0]
		for _, job := range jobs {
			if job.Status == status.String() {
				filtered = append(filtered, job)
			}
		}
		jobs = filtered
	}

	jobs = pageAfter(jobs, cursor)

	var nextCursor string
	if len(jobs) > req.PageSize {
		jobs = jobs[:req.PageSize]
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
	}

	if jobs == nil {
		jobs = []domain.JobView{}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobs,
		NextCursor: nextCursor,
	})
}

func isKnownStatus(s domain.JobStatus) bool {
	switch s {
	case domain.JobStatusPending, domain.JobStatusRunning, domain.JobStatusCompleted,
		domain.JobStatusCancelled, domain.JobStatusFailed:
		return true
	default:
		return false
	}
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// Only the connection that created the job may cancel it
func (h *JobHandler) CancelJob(c *gin.Context) {
	connectionID, ok := requireConnectionID(c)
	if !ok {
		return
	}
	jobID, ok := requireJobID(c)
	if !ok {
		return
	}

	if err := h.jobs.CancelJob(c.Request.Context(), jobID, connectionID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.CancelJobResponse{
		JobID:   jobID,
		Message: "cancellation requested",
	})
}

// Subscribe handles POST /api/v1/jobs/:job_id/subscribe
// Adds the caller's stream to the job's topic
func (h *JobHandler) Subscribe(c *gin.Context) {
	connectionID, ok := requireConnectionID(c)
	if !ok {
		return
	}
	jobID, ok := requireJobID(c)
	if !ok {
		return
	}

	if _, err := h.jobs.GetJob(jobID); err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.hub.Join(connectionID, jobID); err != nil {
		if errors.Is(err, notify.ErrUnknownConnection) {
			c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "connection has no open stream"})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SubscriptionResponse{
		JobID:        jobID,
		ConnectionID: connectionID,
		Subscribed:   true,
	})
}

// Unsubscribe handles DELETE /api/v1/jobs/:job_id/subscribe
func (h *JobHandler) Unsubscribe(c *gin.Context) {
	connectionID, ok := requireConnectionID(c)
	if !ok {
		return
	}
	jobID, ok := requireJobID(c)
	if !ok {
		return
	}

	h.hub.Leave(connectionID, jobID)

	c.JSON(http.StatusOK, dto.SubscriptionResponse{
		JobID:        jobID,
		ConnectionID: connectionID,
		Subscribed:   false,
	})
}
