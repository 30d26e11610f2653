package dto

import "github.com/cuongbtq/text-stream/internal/domain"

type CreateJobRequest struct {
	Text string `json:"text" binding:"required"`
}

type ListJobsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []domain.JobView `json:"jobs"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

type CancelJobResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

type SubscriptionResponse struct {
	JobID        string `json:"job_id"`
	ConnectionID string `json:"connection_id"`
	Subscribed   bool   `json:"subscribed"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Concurrency int    `json:"concurrency"`
	InFlight    int    `json:"in_flight"`
	Queued      int    `json:"queued"`
	Connections int    `json:"connections"`
}
