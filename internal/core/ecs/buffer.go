package ecs

// CommandBuffer records structural changes (component add/remove) made while
// a system iterates a store. Operations run in the order they were pushed
// when Flush is called at the barrier between two phases.
type CommandBuffer struct {
	ops []func()
}

func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{ops: make([]func(), 0, 64)}
}

func (b *CommandBuffer) Push(op func()) {
	b.ops = append(b.ops, op)
}

// Len returns the number of pending operations.
func (b *CommandBuffer) Len() int {
	return len(b.ops)
}

// Flush applies every pending operation and empties the buffer.
// Operations pushed during Flush are applied in the same call.
func (b *CommandBuffer) Flush() int {
	n := 0
	for i := 0; i < len(b.ops); i++ {
		b.ops[i]()
		b.ops[i] = nil
		n++
	}
	b.ops = b.ops[:0]
	return n
}

// Discard drops every pending operation without applying it.
func (b *CommandBuffer) Discard() {
	clear(b.ops)
	b.ops = b.ops[:0]
}
