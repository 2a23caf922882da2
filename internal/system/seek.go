package system

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/rtsgo/server/internal/component"
	"github.com/rtsgo/server/internal/core/ecs"
	coresys "github.com/rtsgo/server/internal/core/system"
	"github.com/rtsgo/server/internal/resource"
	"github.com/rtsgo/server/internal/world"
)

// SeekSystem turns each seeking unit's Destination into a Velocity.
// Phase 2 (Seek).
type SeekSystem struct {
	state *world.State
	speed float32
}

func NewSeekSystem(state *world.State, speed float32) *SeekSystem {
	return &SeekSystem{state: state, speed: speed}
}

func (s *SeekSystem) Phase() coresys.Phase { return coresys.PhaseSeek }

func (s *SeekSystem) Update(res *resource.Store) {
	dt := res.Elapsed()
	buf := s.state.Buffer()
	ecs.Each2Opt(s.state.Positions, s.state.Destinations, s.state.Velocities,
		func(e ecs.EntityID, p *component.Position, d *component.Destination, v *component.Velocity) {
			vel := SeekVelocity(mgl32.Vec2{p.X, p.Y}, mgl32.Vec2{d.X, d.Y}, s.speed, dt)
			if v != nil {
				v.DX, v.DY = vel[0], vel[1]
				return
			}
			s.state.Velocities.Attach(buf, e, component.Velocity{DX: vel[0], DY: vel[1]})
		})
}

// SeekVelocity returns the velocity that moves pos toward dest at speed for
// dt seconds without passing it. When a full-speed step would reach or pass
// dest, the velocity is shortened so the step ends exactly on dest.
func SeekVelocity(pos, dest mgl32.Vec2, speed, dt float32) mgl32.Vec2 {
	dir := dest.Sub(pos)
	vel := normalize(dir).Mul(speed)
	step := vel.Mul(dt)
	if dt > 0 && dir.Dot(dir) <= step.Dot(step) {
		return dir.Mul(1 / dt)
	}
	return vel
}

// normalize maps the zero vector to itself instead of NaN.
func normalize(v mgl32.Vec2) mgl32.Vec2 {
	l := v.Len()
	if l == 0 {
		return mgl32.Vec2{}
	}
	return v.Mul(1 / l)
}
