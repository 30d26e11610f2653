package worker

import (
	"errors"
	"sync"
)

// ErrQueueClosed is returned when enqueueing into a closed queue
var ErrQueueClosed = errors.New("queue closed")

// Queue holds job IDs waiting for a free execution slot
type Queue interface {
	// Enqueue appends a job ID
	Enqueue(jobID string) error
	// Dequeue removes the oldest job ID; ok is false when the queue is empty
	Dequeue() (jobID string, ok bool, err error)
	// Len returns the number of waiting job IDs
	Len() int
}

// MemoryQueue is an unbounded FIFO queue
type MemoryQueue struct {
	mu     sync.Mutex
	items  []string
	closed bool
}

// NewMemoryQueue creates an empty MemoryQueue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Enqueue implements Queue
func (q *MemoryQueue) Enqueue(jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, jobID)
	return nil
}

// Dequeue implements Queue
func (q *MemoryQueue) Dequeue() (string, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return "", false, nil
	}

	jobID := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return jobID, true, nil
}

// Len implements Queue
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further Enqueue calls; queued IDs can still be drained.
// Worker.Stop closes its queue when the queue supports it.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
