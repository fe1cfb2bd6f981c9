// Package stream fans board events out to connected clients. Events are
// published to a redis channel by the mutation pipeline, bridged into an
// in-process hub and delivered to SSE sessions. Delivery is at most once:
// a session that is not connected, or whose buffer is full, misses the
// event and is never replayed to.
package stream

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"taskboard-api/domain"
)

const sessionBuffer = 16

// Session is a single connected client. Events arrive on Events until the
// session is unregistered.
type Session struct {
	ID     string
	Name   string
	Events chan domain.Event
}

// Hub tracks connected sessions and broadcasts events to all of them.
type Hub struct {
	logger *log.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		panic("stream: logger is required")
	}
	return &Hub{logger: logger, sessions: make(map[string]*Session)}
}

// Register adds a session for a connected client.
func (h *Hub) Register(name string) *Session {
	s := &Session{
		ID:     uuid.NewString(),
		Name:   name,
		Events: make(chan domain.Event, sessionBuffer),
	}
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	h.logger.Debugf("session %s registered, name: %q", s.ID, name)
	return s
}

// Unregister removes the session and closes its event channel.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	h.mu.Unlock()
	if ok {
		close(s.Events)
		h.logger.Debugf("session %s unregistered", s.ID)
	}
}

// Broadcast delivers the event to every registered session without
// blocking. Sessions with a full buffer are skipped.
func (h *Hub) Broadcast(ev domain.Event) {
	h.mu.Lock()
	for _, s := range h.sessions {
		select {
		case s.Events <- ev:
		default:
			h.logger.Warnf("session %s buffer full, dropping event", s.ID)
		}
	}
	h.mu.Unlock()
}

// Len reports the number of connected sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
