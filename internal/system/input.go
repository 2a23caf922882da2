package system

import (
	"github.com/rtsgo/server/internal/command"
	"github.com/rtsgo/server/internal/core/event"
	coresys "github.com/rtsgo/server/internal/core/system"
	"github.com/rtsgo/server/internal/resource"
	"github.com/rtsgo/server/internal/world"
	"go.uber.org/zap"
)

// Source yields the commands submitted since the previous tick without
// blocking.
type Source interface {
	Drain(buf []command.Command) []command.Command
}

// InputSystem drains every pending command once per tick and applies it to
// the world. Phase 0 (Input).
type InputSystem struct {
	source Source
	state  *world.State
	bus    *event.Bus
	log    *zap.Logger
	batch  []command.Command
}

func NewInputSystem(source Source, state *world.State, bus *event.Bus, log *zap.Logger) *InputSystem {
	return &InputSystem{
		source: source,
		state:  state,
		bus:    bus,
		log:    log,
		batch:  make([]command.Command, 0, 64),
	}
}

func (s *InputSystem) Phase() coresys.Phase { return coresys.PhaseInput }

func (s *InputSystem) Update(res *resource.Store) {
	s.batch = s.source.Drain(s.batch[:0])
	if len(s.batch) == 0 {
		return
	}
	defer clear(s.batch)

	// A reset anywhere in the batch wins: everything else drained this tick
	// is dropped along with the old world.
	resets := 0
	for _, cmd := range s.batch {
		if cmd.Kind == command.KindResetWorld {
			resets++
		}
	}
	if resets > 0 {
		discarded := len(s.batch) - resets
		s.state.Reset()
		event.Emit(s.bus, event.WorldReset{Discarded: discarded, Tick: res.Time.Ticks})
		s.log.Info("world reset",
			zap.Uint64("tick", res.Time.Ticks),
			zap.Int("discarded", discarded),
		)
		return
	}

	for _, cmd := range s.batch {
		s.apply(cmd)
	}
}

func (s *InputSystem) apply(cmd command.Command) {
	switch cmd.Kind {
	case command.KindCreateUnit:
		e, res := s.state.ApplyCreate(cmd.ID, cmd.X, cmd.Y)
		if res == world.ResultDuplicate {
			s.log.Warn("duplicate unit id rejected", zap.String("id", cmd.ID))
			event.Emit(s.bus, event.UnitRejected{UnitID: cmd.ID, Reason: event.RejectDuplicateID, X: cmd.X, Y: cmd.Y})
			return
		}
		event.Emit(s.bus, event.UnitCreated{EntityID: e, UnitID: cmd.ID, X: cmd.X, Y: cmd.Y})

	case command.KindSetDestination:
		if _, res := s.state.ApplyDestination(cmd.ID, cmd.X, cmd.Y); res == world.ResultUnknownUnit {
			s.log.Debug("destination for unknown unit ignored", zap.String("id", cmd.ID))
			event.Emit(s.bus, event.UnitRejected{UnitID: cmd.ID, Reason: event.RejectUnknownUnit, X: cmd.X, Y: cmd.Y})
		}

	default:
		s.log.Warn("unhandled command", zap.Stringer("kind", cmd.Kind))
	}
}
