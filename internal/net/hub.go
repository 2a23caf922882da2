package net

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Hub tracks connected sessions and fans messages out to them.
type Hub struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	log      *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		sessions: make(map[uuid.UUID]*Session),
		log:      log,
	}
}

// Add registers sess, closing any earlier session with the same id.
func (h *Hub) Add(sess *Session) {
	h.mu.Lock()
	old := h.sessions[sess.ID]
	h.sessions[sess.ID] = sess
	h.mu.Unlock()
	if old != nil && old != sess {
		h.log.Info("replacing existing session", zap.Stringer("session", sess.ID))
		old.Close()
	}
}

// Remove unregisters sess if it is still the current session for its id.
func (h *Hub) Remove(sess *Session) {
	h.mu.Lock()
	if h.sessions[sess.ID] == sess {
		delete(h.sessions, sess.ID)
	}
	h.mu.Unlock()
}

// Get returns the live session for id.
func (h *Hub) Get(id uuid.UUID) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Broadcast queues msg on every session without blocking. It may be called
// from the simulation goroutine.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.Send(msg)
	}
}

// CloseAll closes every session.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	for _, s := range targets {
		s.Close()
	}
}
