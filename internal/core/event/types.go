package event

import (
	"time"

	"github.com/rtsgo/server/internal/core/ecs"
)

// UnitCreated is emitted when a CreateUnit command is accepted.
type UnitCreated struct {
	EntityID ecs.EntityID
	UnitID   string
	X, Y     float32
}

// UnitArrived is emitted when a unit reaches its destination and stops.
type UnitArrived struct {
	EntityID ecs.EntityID
	UnitID   string
	X, Y     float32
	Tick     uint64
}

// RejectReason explains why a command had no effect.
type RejectReason int

const (
	RejectDuplicateID RejectReason = iota + 1
	RejectUnknownUnit
)

func (r RejectReason) String() string {
	switch r {
	case RejectDuplicateID:
		return "duplicate_id"
	case RejectUnknownUnit:
		return "unknown_unit"
	default:
		return "unknown"
	}
}

// UnitRejected is emitted when a command addressed a unit but changed nothing.
// X and Y are the coordinates the command carried.
type UnitRejected struct {
	UnitID string
	Reason RejectReason
	X, Y   float32
}

// WorldReset is emitted after the store and index were replaced.
type WorldReset struct {
	Discarded int // other commands dropped from the same batch
	Tick      uint64
}

// TickOverrun is emitted when a tick's work exceeded the target interval.
type TickOverrun struct {
	Tick     uint64
	Work     time.Duration
	Interval time.Duration
}
