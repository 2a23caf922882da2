package system

import (
	"github.com/rtsgo/server/internal/core/event"
	coresys "github.com/rtsgo/server/internal/core/system"
	"github.com/rtsgo/server/internal/resource"
)

// EventDispatchSystem delivers the events emitted since the previous
// dispatch to their subscribers. Phase 1 (PreUpdate).
type EventDispatchSystem struct {
	bus *event.Bus
}

func NewEventDispatchSystem(bus *event.Bus) *EventDispatchSystem {
	return &EventDispatchSystem{bus: bus}
}

func (s *EventDispatchSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *EventDispatchSystem) Update(_ *resource.Store) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
