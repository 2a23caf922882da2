package ecs

// PtrComponentStore is a generic typed map store for ECS components.
// Pure generics, no reflection.
type PtrComponentStore[T any] struct {
	data map[EntityID]*T
}

func NewPtrComponentStore[T any]() *PtrComponentStore[T] {
	return &PtrComponentStore[T]{
		data: make(map[EntityID]*T, 256),
	}
}

func (s *PtrComponentStore[T]) Set(id EntityID, c *T) {
	s.data[id] = c
}

func (s *PtrComponentStore[T]) Get(id EntityID) (*T, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *PtrComponentStore[T]) Remove(id EntityID) {
	delete(s.data, id)
}

func (s *PtrComponentStore[T]) Has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *PtrComponentStore[T]) Len() int {
	return len(s.data)
}

// Each visits every stored component. fn may mutate the component in place
// but must not add or remove entries; structural changes go through a
// CommandBuffer.
func (s *PtrComponentStore[T]) Each(fn func(EntityID, *T)) {
	for id, c := range s.data {
		fn(id, c)
	}
}

// Attach queues an add-or-replace of c on id, applied at the next flush.
func (s *PtrComponentStore[T]) Attach(buf *CommandBuffer, id EntityID, c T) {
	buf.Push(func() { s.data[id] = &c })
}

// Detach queues the removal of id's component, applied at the next flush.
// Detaching a component that is not present is a no-op.
func (s *PtrComponentStore[T]) Detach(buf *CommandBuffer, id EntityID) {
	buf.Push(func() { delete(s.data, id) })
}
