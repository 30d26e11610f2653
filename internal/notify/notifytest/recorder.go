// Package notifytest provides an in-memory event recorder for tests.
package notifytest

import (
	"context"
	"sync"

	"github.com/cuongbtq/text-stream/internal/notify"
)

// Recorder is a notify.Publisher that keeps every event it receives
type Recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

// NewRecorder creates an empty Recorder
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Publish implements notify.Publisher
func (r *Recorder) Publish(_ context.Context, event notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of all recorded events
func (r *Recorder) Events() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]notify.Event, len(r.events))
	copy(out, r.events)
	return out
}

// EventsFor returns the recorded events of one job, in order
func (r *Recorder) EventsFor(jobID string) []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []notify.Event
	for _, e := range r.events {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events of type t were recorded for jobID
func (r *Recorder) Count(jobID string, t notify.EventType) int {
	n := 0
	for _, e := range r.EventsFor(jobID) {
		if e.Type == t {
			n++
		}
	}
	return n
}
