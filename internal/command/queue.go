package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrQueueFull   = errors.New("command queue full")
	ErrQueueClosed = errors.New("command queue closed")
)

// Backpressure selects what Submit does when the queue is at capacity.
type Backpressure int

const (
	// Block waits for capacity, the context, or Close.
	Block Backpressure = iota
	// Fail returns ErrQueueFull immediately.
	Fail
)

// ParseBackpressure maps the config spelling onto a policy.
func ParseBackpressure(s string) (Backpressure, error) {
	switch s {
	case "", "block":
		return Block, nil
	case "fail":
		return Fail, nil
	default:
		return Block, fmt.Errorf("unknown backpressure policy %q", s)
	}
}

func (b Backpressure) String() string {
	if b == Fail {
		return "fail"
	}
	return "block"
}

// Queue is a bounded many-producer, single-consumer FIFO. Producers call
// Submit from any goroutine; the simulation goroutine calls Drain once per
// tick. Commands are never dropped: a full queue blocks or fails per policy.
type Queue struct {
	ch        chan Command
	policy    Backpressure
	closed    chan struct{}
	closeOnce sync.Once
}

func NewQueue(capacity int, policy Backpressure) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ch:     make(chan Command, capacity),
		policy: policy,
		closed: make(chan struct{}),
	}
}

// Submit enqueues cmd. It fails only when the queue is closed, when ctx ends
// while waiting for capacity, or, under the Fail policy, when the queue is full.
func (q *Queue) Submit(ctx context.Context, cmd Command) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case q.ch <- cmd:
		return nil
	default:
	}
	if q.policy == Fail {
		return ErrQueueFull
	}

	select {
	case q.ch <- cmd:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain appends every command currently buffered to buf without blocking and
// returns the extended slice.
func (q *Queue) Drain(buf []Command) []Command {
	for {
		select {
		case cmd := <-q.ch:
			buf = append(buf, cmd)
		default:
			return buf
		}
	}
}

// Close rejects further submissions. Commands already buffered can still be
// drained. Safe to call more than once.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	select {
	case <-q.closed:
		return true
	default:
		return false
	}
}

func (q *Queue) Len() int { return len(q.ch) }
func (q *Queue) Cap() int { return cap(q.ch) }
