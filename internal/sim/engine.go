// Package sim owns the world and runs the system pipeline, either stepped
// by an embedding host (Engine) or on a dedicated thread at a fixed cadence
// (Loop).
package sim

import (
	"context"
	"iter"

	"github.com/rtsgo/server/internal/command"
	"github.com/rtsgo/server/internal/config"
	"github.com/rtsgo/server/internal/core/event"
	coresys "github.com/rtsgo/server/internal/core/system"
	"github.com/rtsgo/server/internal/resource"
	"github.com/rtsgo/server/internal/snapshot"
	"github.com/rtsgo/server/internal/system"
	"github.com/rtsgo/server/internal/world"
	"go.uber.org/zap"
)

// Engine is the simulation without a clock. Not safe for concurrent use:
// every method except Snapshot must be called from one goroutine.
type Engine struct {
	state   *world.State
	bus     *event.Bus
	cache   *snapshot.Cache
	runner  *coresys.Runner
	res     resource.Store
	queue   *command.Queue
	pending []command.Command
	log     *zap.Logger
}

// NewEngine builds the pipeline. queue may be nil when commands only arrive
// through Apply. sink receives cadence samples and may be nil.
func NewEngine(cfg config.SimulationConfig, queue *command.Queue, sink system.TickSink, metricsEvery int, log *zap.Logger) *Engine {
	e := &Engine{
		state: world.NewState(),
		bus:   event.NewBus(),
		cache: snapshot.NewCache(),
		queue: queue,
		log:   log,
	}
	e.runner = coresys.NewRunner(e.state)
	e.runner.Register(system.NewInputSystem(e, e.state, e.bus, log))
	e.runner.Register(system.NewEventDispatchSystem(e.bus))
	e.runner.Register(system.NewSeekSystem(e.state, float32(cfg.SeekSpeed)))
	e.runner.Register(system.NewIntegrateSystem(e.state))
	e.runner.Register(system.NewArrivalSystem(e.state, e.bus, float32(cfg.ArrivalThreshold)))
	e.runner.Register(system.NewOutputSystem(e.state, e.cache))
	e.runner.Register(system.NewMetricsSystem(e.state, sink, metricsEvery, log))

	event.Subscribe(e.bus, func(ev event.UnitArrived) {
		log.Debug("unit arrived", zap.String("id", ev.UnitID), zap.Float32("x", ev.X), zap.Float32("y", ev.Y))
	})
	return e
}

// Drain hands the input system everything applied directly plus everything
// waiting in the queue.
func (e *Engine) Drain(buf []command.Command) []command.Command {
	buf = append(buf, e.pending...)
	clear(e.pending)
	e.pending = e.pending[:0]
	if e.queue != nil {
		buf = e.queue.Drain(buf)
	}
	return buf
}

// Apply buffers commands for the next Step.
func (e *Engine) Apply(cmds ...command.Command) {
	e.pending = append(e.pending, cmds...)
}

// Submit is Apply with the queue's signature so scenario runners can target
// an Engine directly.
func (e *Engine) Submit(_ context.Context, cmd command.Command) error {
	e.Apply(cmd)
	return nil
}

// Step runs one tick that simulates elapsedSeconds of time.
func (e *Engine) Step(elapsedSeconds float64) {
	e.res.Time.ElapsedSeconds = elapsedSeconds
	e.res.Time.Ticks++
	e.runner.Tick(&e.res)
}

// Ticks returns the number of completed ticks.
func (e *Engine) Ticks() uint64 { return e.res.Time.Ticks }

// UnitCount returns the number of live units.
func (e *Engine) UnitCount() int { return e.state.UnitCount() }

// ChangedUnits lazily yields the units whose position or destination changed
// since they were last yielded.
func (e *Engine) ChangedUnits() iter.Seq[world.UnitView] {
	return e.state.ChangedUnits()
}

// Snapshot returns the latest published snapshot. Safe from any goroutine.
func (e *Engine) Snapshot() snapshot.Snapshot { return e.cache.Read() }

// Bus exposes the event bus so hosts can subscribe before the first Step.
func (e *Engine) Bus() *event.Bus { return e.bus }

// Phases lists the pipeline's phases in execution order.
func (e *Engine) Phases() []coresys.Phase { return e.runner.Phases() }

func (e *Engine) recordCadence(c resource.Cadence) {
	e.res.Cadence = c
}
