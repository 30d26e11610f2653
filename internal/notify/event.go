// Package notify delivers job events to the owning connection, to topic
// subscribers and to external brokers. Delivery is best effort: publishers
// log their own failures and never report them back to the caller.
package notify

import (
	"context"
	"time"

	"github.com/cuongbtq/text-stream/internal/domain"
)

// EventType names an outbound event
type EventType string

// Event types
const (
	EventConnected EventType = "connected"
	EventUnit      EventType = "unit"
	EventCompleted EventType = "completed"
	EventCancelled EventType = "cancelled"
	EventFailed    EventType = "failed"
)

// IsTerminal reports whether the event is the last one for its job
func (t EventType) IsTerminal() bool {
	return t == EventCompleted || t == EventCancelled || t == EventFailed
}

// Event is the envelope sent over every channel
type Event struct {
	Type      EventType       `json:"type"`
	JobID     string          `json:"job_id,omitempty"`
	OwnerID   string          `json:"owner_id,omitempty"`
	Unit      string          `json:"unit,omitempty"`
	Progress  float64         `json:"progress,omitempty"`
	Job       *domain.JobView `json:"job,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Sink receives the events emitted while a job runs
type Sink interface {
	UnitProcessed(ctx context.Context, ownerID, jobID, unit string, progress float64)
	JobCompleted(ctx context.Context, ownerID string, job domain.Job)
	JobCancelled(ctx context.Context, ownerID, jobID string)
	JobFailed(ctx context.Context, ownerID, jobID, message string)
}

// Publisher delivers a single event to one channel
type Publisher interface {
	Publish(ctx context.Context, event Event)
}
