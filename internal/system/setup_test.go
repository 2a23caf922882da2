package system

import (
	"testing"

	"github.com/rtsgo/server/internal/command"
	"github.com/rtsgo/server/internal/core/event"
	coresys "github.com/rtsgo/server/internal/core/system"
	"github.com/rtsgo/server/internal/resource"
	"github.com/rtsgo/server/internal/snapshot"
	"github.com/rtsgo/server/internal/world"
	"go.uber.org/zap/zaptest"
)

const (
	testSpeed     = 5
	testThreshold = 0.1
)

// sliceSource hands out whatever was queued since the last drain.
type sliceSource struct {
	pending []command.Command
}

func (s *sliceSource) Drain(buf []command.Command) []command.Command {
	buf = append(buf, s.pending...)
	s.pending = s.pending[:0]
	return buf
}

type harness struct {
	t      *testing.T
	state  *world.State
	bus    *event.Bus
	cache  *snapshot.Cache
	source *sliceSource
	runner *coresys.Runner
	res    resource.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		state:  world.NewState(),
		bus:    event.NewBus(),
		cache:  snapshot.NewCache(),
		source: &sliceSource{},
	}
	log := zaptest.NewLogger(t)
	h.runner = coresys.NewRunner(h.state)
	h.runner.Register(NewInputSystem(h.source, h.state, h.bus, log))
	h.runner.Register(NewEventDispatchSystem(h.bus))
	h.runner.Register(NewSeekSystem(h.state, testSpeed))
	h.runner.Register(NewIntegrateSystem(h.state))
	h.runner.Register(NewArrivalSystem(h.state, h.bus, testThreshold))
	h.runner.Register(NewOutputSystem(h.state, h.cache))
	return h
}

func (h *harness) submit(cmds ...command.Command) {
	h.source.pending = append(h.source.pending, cmds...)
}

func (h *harness) tick(elapsed float64) {
	h.res.Time.ElapsedSeconds = elapsed
	h.res.Time.Ticks++
	h.runner.Tick(&h.res)
}

func (h *harness) unit(id string) world.UnitView {
	h.t.Helper()
	v, ok := h.state.Unit(id)
	if !ok {
		h.t.Fatalf("unit %q not found", id)
	}
	return v
}
