package system

import (
	"github.com/rtsgo/server/internal/component"
	"github.com/rtsgo/server/internal/core/ecs"
	coresys "github.com/rtsgo/server/internal/core/system"
	"github.com/rtsgo/server/internal/resource"
	"github.com/rtsgo/server/internal/world"
)

// IntegrateSystem advances every moving unit by velocity × elapsed.
// Phase 3 (Integrate).
type IntegrateSystem struct {
	state *world.State
}

func NewIntegrateSystem(state *world.State) *IntegrateSystem {
	return &IntegrateSystem{state: state}
}

func (s *IntegrateSystem) Phase() coresys.Phase { return coresys.PhaseIntegrate }

func (s *IntegrateSystem) Update(res *resource.Store) {
	dt := res.Elapsed()
	ecs.Each2(s.state.Positions, s.state.Velocities, func(_ ecs.EntityID, p *component.Position, v *component.Velocity) {
		p.X += v.DX * dt
		p.Y += v.DY * dt
	})
}
