package cardtable

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// A frameEncoder writes one JSON frame to a client connection. In
// production it is a json.Encoder over a websocket conn; tests substitute
// their own.
type frameEncoder interface {
	Encode(v interface{}) error
}

type session struct {
	id     string
	userID string

	mu  sync.Mutex
	enc frameEncoder
}

// send serializes writes to a single connection, so frames to one session
// arrive in publish order.
func (s *session) send(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(v)
}

// Hub is the process-wide registry of connected client sessions. Sessions
// register on connect and deregister on disconnect; Publish fans an event
// out to every registered session, the originating user's included.
//
// Publishes are queued and drained by a single publisher goroutine: the
// caller never blocks on a client socket, and events reach every session
// in the order they were published, so deltas from two sequentially
// committed batches cannot arrive swapped.
type Hub struct {
	metrics Recorder

	mu       sync.Mutex
	sessions map[string]*session

	events chan CardUpdate
	done   chan struct{}
}

// NewHub creates a new empty Hub and starts its publisher.
func NewHub(metrics Recorder) *Hub {
	h := &Hub{
		metrics:  metrics,
		sessions: map[string]*session{},
		events:   make(chan CardUpdate, 64),
		done:     make(chan struct{}),
	}

	go h.run()
	return h
}

// Register adds a connected session for the given user and returns its
// session ID, used to deregister it later.
func (h *Hub) Register(userID string, enc frameEncoder) string {
	s := &session{
		id:     uuid.NewString(),
		userID: userID,
		enc:    enc,
	}

	h.mu.Lock()
	h.sessions[s.id] = s
	n := len(h.sessions)
	h.mu.Unlock()

	h.metrics.SessionsChanged(n)
	return s.id
}

// Deregister removes a session from the registry. Unknown IDs are ignored,
// so a failed sender and a closing connection can both deregister safely.
func (h *Hub) Deregister(id string) {
	h.mu.Lock()
	delete(h.sessions, id)
	n := len(h.sessions)
	h.mu.Unlock()

	h.metrics.SessionsChanged(n)
}

// Publish queues the event for delivery to every connected session, best
// effort. A slow or failed session never delays the caller, only the
// publisher.
func (h *Hub) Publish(event CardUpdate) {
	h.events <- event
}

// Close drains any queued events and stops the publisher.
func (h *Hub) Close() {
	close(h.events)
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)

	for event := range h.events {
		h.broadcast(event)
	}
}

// broadcast sends one event to every registered session. The registry is
// snapshotted first so sends never hold the hub lock, and a session whose
// connection fails is dropped without affecting the others or the
// already-committed mutation behind the event.
func (h *Hub) broadcast(event CardUpdate) {
	h.mu.Lock()
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		if err := s.send(event); err != nil {
			slog.Warn("dropping unreachable session",
				"session", s.id, "user", s.userID, "err", err)
			h.Deregister(s.id)
			h.metrics.SendDropped()
		}
	}

	h.metrics.EventPublished(len(event.Updates))
}
