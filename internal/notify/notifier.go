package notify

import (
	"context"
	"time"

	"github.com/cuongbtq/text-stream/internal/domain"
)

// Notifier turns Sink calls into events and fans them out to publishers in
// registration order
type Notifier struct {
	publishers []Publisher
	now        func() time.Time
}

// NewNotifier creates a new Notifier
func NewNotifier(publishers ...Publisher) *Notifier {
	return &Notifier{
		publishers: publishers,
		now:        time.Now,
	}
}

// UnitProcessed implements Sink
func (n *Notifier) UnitProcessed(ctx context.Context, ownerID, jobID, unit string, progress float64) {
	n.publish(ctx, Event{
		Type:     EventUnit,
		JobID:    jobID,
		OwnerID:  ownerID,
		Unit:     unit,
		Progress: progress,
	})
}

// JobCompleted implements Sink
func (n *Notifier) JobCompleted(ctx context.Context, ownerID string, job domain.Job) {
	view := job.View()
	n.publish(ctx, Event{
		Type:     EventCompleted,
		JobID:    job.JobID,
		OwnerID:  ownerID,
		Progress: view.Progress,
		Job:      &view,
	})
}

// JobCancelled implements Sink
func (n *Notifier) JobCancelled(ctx context.Context, ownerID, jobID string) {
	n.publish(ctx, Event{
		Type:    EventCancelled,
		JobID:   jobID,
		OwnerID: ownerID,
	})
}

// JobFailed implements Sink
func (n *Notifier) JobFailed(ctx context.Context, ownerID, jobID, message string) {
	n.publish(ctx, Event{
		Type:    EventFailed,
		JobID:   jobID,
		OwnerID: ownerID,
		Error:   message,
	})
}

func (n *Notifier) publish(ctx context.Context, event Event) {
	event.Timestamp = n.now()
	for _, p := range n.publishers {
		p.Publish(ctx, event)
	}
}
