package world

import (
	"iter"
	"slices"

	"github.com/rtsgo/server/internal/component"
	"github.com/rtsgo/server/internal/core/ecs"
)

// Result reports what applying a command did to the state.
type Result int

const (
	ResultApplied     Result = iota
	ResultDuplicate          // CreateUnit for an id that is already indexed
	ResultUnknownUnit        // SetDestination for an id that is not indexed
)

func (r Result) String() string {
	switch r {
	case ResultApplied:
		return "applied"
	case ResultDuplicate:
		return "duplicate"
	case ResultUnknownUnit:
		return "unknown_unit"
	default:
		return "invalid"
	}
}

// UnitView is a copy of one unit's components. Destination is nil when the
// unit is stationary.
type UnitView struct {
	Entity      ecs.EntityID
	Position    component.Position
	Destination *component.Destination
	Identity    component.UnitIdentity
}

type polledUnit struct {
	pos     component.Position
	dest    component.Destination
	hasDest bool
}

// State holds the component stores and the id→entity index.
// Accessed only from the simulation goroutine, so it takes no locks.
type State struct {
	world      *ecs.World
	generation uint32

	Positions    *ecs.PtrComponentStore[component.Position]
	Velocities   *ecs.PtrComponentStore[component.Velocity]
	Destinations *ecs.PtrComponentStore[component.Destination]
	Identities   *ecs.PtrComponentStore[component.UnitIdentity]

	index  map[string]ecs.EntityID
	polled map[ecs.EntityID]polledUnit
}

func NewState() *State {
	s := &State{}
	s.Reset()
	return s
}

// Reset replaces the store and the index with fresh empty instances.
// Deferred changes queued against the old store are discarded with it.
func (s *State) Reset() {
	s.generation++
	s.world = ecs.NewWorld(s.generation)
	s.Positions = ecs.NewPtrComponentStore[component.Position]()
	s.Velocities = ecs.NewPtrComponentStore[component.Velocity]()
	s.Destinations = ecs.NewPtrComponentStore[component.Destination]()
	s.Identities = ecs.NewPtrComponentStore[component.UnitIdentity]()
	s.index = make(map[string]ecs.EntityID, 256)
	s.polled = make(map[ecs.EntityID]polledUnit, 256)
}

// Buffer returns the deferred command buffer systems record structural
// changes into.
func (s *State) Buffer() *ecs.CommandBuffer { return s.world.Buffer() }

// Flush applies deferred structural changes. It is the runner's barrier.
func (s *State) Flush() int { return s.world.Flush() }

// Generation increments on every Reset.
func (s *State) Generation() uint32 { return s.generation }

// UnitCount returns the number of indexed units.
func (s *State) UnitCount() int { return len(s.index) }

// Lookup resolves a unit id to its entity handle.
func (s *State) Lookup(id string) (ecs.EntityID, bool) {
	e, ok := s.index[id]
	return e, ok
}

// ApplyCreate allocates an entity for id at (x, y). The handle and the index
// entry exist immediately; Position and UnitIdentity appear after the next
// flush. An id that is already indexed is rejected and the existing unit is
// left untouched.
func (s *State) ApplyCreate(id string, x, y float32) (ecs.EntityID, Result) {
	if e, ok := s.index[id]; ok {
		return e, ResultDuplicate
	}
	e := s.world.CreateEntity()
	s.index[id] = e
	buf := s.world.Buffer()
	s.Positions.Attach(buf, e, component.Position{X: x, Y: y})
	s.Identities.Attach(buf, e, component.UnitIdentity{ID: id})
	return e, ResultApplied
}

// ApplyDestination points the unit id at (x, y). An existing Destination is
// overwritten in place; otherwise one is attached at the next flush. Unknown
// ids are ignored.
func (s *State) ApplyDestination(id string, x, y float32) (ecs.EntityID, Result) {
	e, ok := s.index[id]
	if !ok {
		return 0, ResultUnknownUnit
	}
	if d, ok := s.Destinations.Get(e); ok {
		d.X, d.Y = x, y
		return e, ResultApplied
	}
	s.Destinations.Attach(s.world.Buffer(), e, component.Destination{X: x, Y: y})
	return e, ResultApplied
}

// Unit returns the current components of the unit id.
func (s *State) Unit(id string) (UnitView, bool) {
	e, ok := s.index[id]
	if !ok {
		return UnitView{}, false
	}
	return s.view(e)
}

// HasVelocity reports whether the unit id is currently moving.
func (s *State) HasVelocity(id string) bool {
	e, ok := s.index[id]
	return ok && s.Velocities.Has(e)
}

func (s *State) view(e ecs.EntityID) (UnitView, bool) {
	pos, ok := s.Positions.Get(e)
	if !ok {
		return UnitView{}, false
	}
	ident, ok := s.Identities.Get(e)
	if !ok {
		return UnitView{}, false
	}
	v := UnitView{Entity: e, Position: *pos, Identity: *ident}
	if d, ok := s.Destinations.Get(e); ok {
		dest := *d
		v.Destination = &dest
	}
	return v, true
}

// ChangedUnits returns the units whose Position or Destination differs from
// what was last yielded for them. Nothing is read until the sequence is
// ranged over; each unit is marked as reported only when it is yielded, so a
// dropped sequence or an early break leaves the rest for the next poll.
// A Reset forgets the baseline.
func (s *State) ChangedUnits() iter.Seq[UnitView] {
	return func(yield func(UnitView) bool) {
		var changed []ecs.EntityID
		ecs.Each2Opt(s.Positions, s.Identities, s.Destinations, func(e ecs.EntityID, p *component.Position, _ *component.UnitIdentity, d *component.Destination) {
			if prev, ok := s.polled[e]; ok && prev == polledOf(p, d) {
				return
			}
			changed = append(changed, e)
		})
		slices.Sort(changed)

		for _, e := range changed {
			v, ok := s.view(e)
			if !ok {
				continue
			}
			s.polled[e] = polledOf(&v.Position, v.Destination)
			if !yield(v) {
				return
			}
		}
	}
}

func polledOf(p *component.Position, d *component.Destination) polledUnit {
	cur := polledUnit{pos: *p}
	if d != nil {
		cur.dest, cur.hasDest = *d, true
	}
	return cur
}
