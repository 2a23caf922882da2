package system

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/rtsgo/server/internal/component"
	"github.com/rtsgo/server/internal/core/ecs"
	"github.com/rtsgo/server/internal/core/event"
	coresys "github.com/rtsgo/server/internal/core/system"
	"github.com/rtsgo/server/internal/resource"
	"github.com/rtsgo/server/internal/world"
)

// ArrivalSystem stops units that are within the arrival threshold of their
// destination: the position snaps onto the destination and both Velocity and
// Destination are removed at the following barrier. Phase 4 (Arrival).
type ArrivalSystem struct {
	state     *world.State
	bus       *event.Bus
	threshold float32 // squared distance
}

func NewArrivalSystem(state *world.State, bus *event.Bus, thresholdSq float32) *ArrivalSystem {
	return &ArrivalSystem{state: state, bus: bus, threshold: thresholdSq}
}

func (s *ArrivalSystem) Phase() coresys.Phase { return coresys.PhaseArrival }

func (s *ArrivalSystem) Update(res *resource.Store) {
	buf := s.state.Buffer()
	ecs.Each2Opt(s.state.Destinations, s.state.Positions, s.state.Velocities,
		func(e ecs.EntityID, d *component.Destination, p *component.Position, v *component.Velocity) {
			delta := mgl32.Vec2{d.X - p.X, d.Y - p.Y}
			if delta.Dot(delta) >= s.threshold {
				return
			}
			p.X, p.Y = d.X, d.Y
			if v != nil {
				s.state.Velocities.Detach(buf, e)
			}
			s.state.Destinations.Detach(buf, e)

			var id string
			if ident, ok := s.state.Identities.Get(e); ok {
				id = ident.ID
			}
			event.Emit(s.bus, event.UnitArrived{EntityID: e, UnitID: id, X: p.X, Y: p.Y, Tick: res.Time.Ticks})
		})
}
