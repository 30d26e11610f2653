package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrConnectionExists is returned when registering an ID twice
	ErrConnectionExists = errors.New("connection already registered")

	// ErrUnknownConnection is returned for operations on unregistered IDs
	ErrUnknownConnection = errors.New("connection not registered")

	// ErrHubClosed is returned by Register after Close
	ErrHubClosed = errors.New("hub closed")
)

// DefaultBufferSize is the per-connection event buffer used when none is configured
const DefaultBufferSize = 256

// Connection is one registered push stream
type Connection struct {
	ID     string
	events chan Event
}

// Events returns the connection's event stream. It is closed on Unregister.
func (c *Connection) Events() <-chan Event {
	return c.events
}

// Hub routes events to the owning connection and to every connection that
// joined the job's topic
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	topics      map[string]map[string]struct{}
	bufferSize  int
	closed      bool
	logger      *slog.Logger
}

// NewHub creates a new Hub
func NewHub(bufferSize int, logger *slog.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		connections: make(map[string]*Connection),
		topics:      make(map[string]map[string]struct{}),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Register adds a connection
func (h *Hub) Register(connectionID string) (*Connection, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if _, exists := h.connections[connectionID]; exists {
		return nil, ErrConnectionExists
	}

	conn := &Connection{
		ID:     connectionID,
		events: make(chan Event, h.bufferSize),
	}
	h.connections[connectionID] = conn

	h.logger.Info("Connection registered",
		slog.String("connection_id", connectionID),
	)

	return conn, nil
}

// Unregister removes a connection from the hub and from every topic
func (h *Hub) Unregister(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.connections[connectionID]
	if !ok {
		return
	}

	delete(h.connections, connectionID)
	for jobID, members := range h.topics {
		delete(members, connectionID)
		if len(members) == 0 {
			delete(h.topics, jobID)
		}
	}
	close(conn.events)

	h.logger.Info("Connection unregistered",
		slog.String("connection_id", connectionID),
	)
}

// Close unregisters every connection, which ends their streams, and rejects
// new registrations
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for id, conn := range h.connections {
		close(conn.events)
		delete(h.connections, id)
	}
	h.topics = make(map[string]map[string]struct{})

	h.logger.Info("Hub closed")
}

// Join subscribes a connection to a job's events
func (h *Hub) Join(connectionID, jobID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[connectionID]; !ok {
		return ErrUnknownConnection
	}

	members, ok := h.topics[jobID]
	if !ok {
		members = make(map[string]struct{})
		h.topics[jobID] = members
	}
	members[connectionID] = struct{}{}
	return nil
}

// Leave unsubscribes a connection from a job's events
func (h *Hub) Leave(connectionID, jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.topics[jobID]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(h.topics, jobID)
	}
}

// IsConnected reports whether a connection is registered
func (h *Hub) IsConnected(connectionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.connections[connectionID]
	return ok
}

// Count returns the number of registered connections
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// Publish implements Publisher. Each recipient gets the event at most once.
// When a recipient's buffer is full a unit event is dropped; a terminal event
// instead evicts the oldest buffered unit event so it is still delivered.
func (h *Hub) Publish(_ context.Context, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	recipients := make(map[string]struct{})
	if event.OwnerID != "" {
		recipients[event.OwnerID] = struct{}{}
	}
	for id := range h.topics[event.JobID] {
		recipients[id] = struct{}{}
	}

	for id := range recipients {
		conn, ok := h.connections[id]
		if !ok {
			continue
		}
		select {
		case conn.events <- event:
		default:
			if event.Type.IsTerminal() && evictUnit(conn) {
				// Only Publish sends and it holds h.mu, so the freed slot is ours
				conn.events <- event
				h.logger.Warn("Connection buffer full, evicted a unit event",
					slog.String("connection_id", id),
					slog.String("job_id", event.JobID),
				)
				continue
			}
			h.logger.Warn("Connection buffer full, dropping event",
				slog.String("connection_id", id),
				slog.String("job_id", event.JobID),
				slog.String("event", string(event.Type)),
			)
		}
	}

	if event.Type.IsTerminal() {
		delete(h.topics, event.JobID)
	}
}

// evictUnit removes the oldest buffered unit event, keeping the order of the
// rest. It reports false when the buffer holds no unit event.
func evictUnit(conn *Connection) bool {
	pending := make([]Event, 0, cap(conn.events))
	for drained := false; !drained; {
		select {
		case e := <-conn.events:
			pending = append(pending, e)
		default:
			drained = true
		}
	}

	evicted := false
	for _, e := range pending {
		if !evicted && e.Type == EventUnit {
			evicted = true
			continue
		}
		conn.events <- e
	}
	return evicted
}
