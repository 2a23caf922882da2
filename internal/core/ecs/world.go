package ecs

// World is the top-level ECS container. It owns the entity pool and the
// deferred command buffer flushed at every pipeline barrier.
type World struct {
	pool   *EntityPool
	buffer *CommandBuffer
}

func NewWorld(generation uint32) *World {
	return &World{
		pool:   NewEntityPool(generation),
		buffer: NewCommandBuffer(),
	}
}

func (w *World) Pool() *EntityPool      { return w.pool }
func (w *World) Buffer() *CommandBuffer { return w.buffer }

// CreateEntity mints a handle. The entity holds no components until queued
// attachments are flushed.
func (w *World) CreateEntity() EntityID {
	return w.pool.Create()
}

func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Flush applies all deferred structural changes. Called by the runner after
// every phase.
func (w *World) Flush() int {
	return w.buffer.Flush()
}
