package ecs

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Handles minted by different pools never compare equal
// once a pool has been replaced, because every pool starts its generation at
// the value it was constructed with.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }

// EntityPool hands out entity handles. Units are never destroyed one by one;
// the whole pool is discarded on a world reset, so there is no free list.
type EntityPool struct {
	generation uint32
	nextIndex  uint32
}

// NewEntityPool creates a pool whose handles carry the given generation.
func NewEntityPool(generation uint32) *EntityPool {
	return &EntityPool{generation: generation}
}

func (p *EntityPool) Create() EntityID {
	idx := p.nextIndex
	p.nextIndex++
	return NewEntityID(idx, p.generation)
}

// Alive reports whether id was minted by this pool.
func (p *EntityPool) Alive(id EntityID) bool {
	return id.Generation() == p.generation && id.Index() < p.nextIndex
}

// Len returns the number of handles minted so far.
func (p *EntityPool) Len() int {
	return int(p.nextIndex)
}

// Generation returns the generation stamped on every handle of this pool.
func (p *EntityPool) Generation() uint32 {
	return p.generation
}
