// Package snapshot is the bridge between the simulation goroutine and the
// readers serving network requests.
package snapshot

import "sync"

// Unit is one unit as published to readers. A stationary unit reports its
// own position as its destination.
type Unit struct {
	Position    [2]float32 `json:"position"`
	Destination [2]float32 `json:"destination"`
	ID          string     `json:"id"`
}

// Snapshot is the state of every unit after one tick. Units must be treated
// as read-only: the same map is handed to every reader of that tick.
type Snapshot struct {
	Tick  uint64
	Units map[string]Unit
}

// Cache holds the latest published snapshot. One writer (the simulation
// goroutine) replaces it wholesale each tick; any number of readers may read
// concurrently. The write lock is held only for the swap, never while a
// snapshot is being built.
type Cache struct {
	mu      sync.RWMutex
	current Snapshot
}

func NewCache() *Cache {
	return &Cache{current: Snapshot{Units: map[string]Unit{}}}
}

// Publish replaces the current snapshot. The caller gives up ownership of
// units and must not modify it afterwards.
func (c *Cache) Publish(tick uint64, units map[string]Unit) {
	if units == nil {
		units = map[string]Unit{}
	}
	c.mu.Lock()
	c.current = Snapshot{Tick: tick, Units: units}
	c.mu.Unlock()
}

// Read returns the latest fully published snapshot.
func (c *Cache) Read() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Len returns the number of units in the latest snapshot.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.current.Units)
}
