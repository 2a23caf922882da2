package system

import (
	"github.com/rtsgo/server/internal/component"
	"github.com/rtsgo/server/internal/core/ecs"
	coresys "github.com/rtsgo/server/internal/core/system"
	"github.com/rtsgo/server/internal/resource"
	"github.com/rtsgo/server/internal/snapshot"
	"github.com/rtsgo/server/internal/world"
)

// OutputSystem rebuilds the unit snapshot from scratch and publishes it.
// Phase 5 (Output).
type OutputSystem struct {
	state *world.State
	cache *snapshot.Cache
}

func NewOutputSystem(state *world.State, cache *snapshot.Cache) *OutputSystem {
	return &OutputSystem{state: state, cache: cache}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(res *resource.Store) {
	units := make(map[string]snapshot.Unit, s.state.Identities.Len())
	ecs.Each2Opt(s.state.Positions, s.state.Identities, s.state.Destinations,
		func(_ ecs.EntityID, p *component.Position, ident *component.UnitIdentity, d *component.Destination) {
			u := snapshot.Unit{
				Position:    [2]float32{p.X, p.Y},
				Destination: [2]float32{p.X, p.Y},
				ID:          ident.ID,
			}
			if d != nil {
				u.Destination = [2]float32{d.X, d.Y}
			}
			units[ident.ID] = u
		})
	s.cache.Publish(res.Time.Ticks, units)
}
