package net

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// ClientRegistry records which client ids may open a WebSocket.
// persist.ClientRepo is the Postgres implementation.
type ClientRegistry interface {
	Register(ctx context.Context, userID int64) (uuid.UUID, error)
	Unregister(ctx context.Context, id uuid.UUID) (bool, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// MemoryClients keeps registrations in process memory.
type MemoryClients struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]int64 // id -> user id
}

func NewMemoryClients() *MemoryClients {
	return &MemoryClients{clients: make(map[uuid.UUID]int64)}
}

func (m *MemoryClients) Register(_ context.Context, userID int64) (uuid.UUID, error) {
	id := uuid.New()
	m.mu.Lock()
	m.clients[id] = userID
	m.mu.Unlock()
	return id, nil
}

func (m *MemoryClients) Unregister(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.clients[id]
	delete(m.clients, id)
	return ok, nil
}

func (m *MemoryClients) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.clients[id]
	return ok, nil
}
