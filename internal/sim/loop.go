package sim

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rtsgo/server/internal/command"
	"github.com/rtsgo/server/internal/config"
	"github.com/rtsgo/server/internal/core/event"
	"github.com/rtsgo/server/internal/resource"
	"github.com/rtsgo/server/internal/snapshot"
	"github.com/rtsgo/server/internal/system"
	"go.uber.org/zap"
)

// Stats describes the loop's cadence. Safe to read from any goroutine.
type Stats struct {
	Ticks    uint64        `json:"ticks"`
	LastWork time.Duration `json:"last_work_ns"`
	Overruns uint64        `json:"overruns"`
	Units    int           `json:"units"`
	Queued   int           `json:"queued"`
}

// Loop runs an Engine on its own OS thread at a fixed target interval.
// Other goroutines talk to it only through Submit and Snapshot.
type Loop struct {
	engine   *Engine
	queue    *command.Queue
	interval time.Duration
	log      *zap.Logger

	ticks    atomic.Uint64
	lastWork atomic.Int64
	overruns atomic.Uint64
	units    atomic.Int64
	running  atomic.Bool
}

func NewLoop(cfg config.SimulationConfig, sink system.TickSink, metricsEvery int, log *zap.Logger) (*Loop, error) {
	policy, err := command.ParseBackpressure(cfg.Backpressure)
	if err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}
	if cfg.TickInterval.Duration <= 0 {
		return nil, fmt.Errorf("simulation: tick interval %s must be positive", cfg.TickInterval.Duration)
	}
	queue := command.NewQueue(cfg.CommandQueueSize, policy)
	return &Loop{
		engine:   NewEngine(cfg, queue, sink, metricsEvery, log),
		queue:    queue,
		interval: cfg.TickInterval.Duration,
		log:      log,
	}, nil
}

// Engine returns the loop's engine. Only valid to use before Run, for
// subscribing to events.
func (l *Loop) Engine() *Engine { return l.engine }

// Submit enqueues a command for the next tick.
func (l *Loop) Submit(ctx context.Context, cmd command.Command) error {
	return l.queue.Submit(ctx, cmd)
}

// Snapshot returns the latest published snapshot.
func (l *Loop) Snapshot() snapshot.Snapshot {
	return l.engine.Snapshot()
}

func (l *Loop) Stats() Stats {
	return Stats{
		Ticks:    l.ticks.Load(),
		LastWork: time.Duration(l.lastWork.Load()),
		Overruns: l.overruns.Load(),
		Units:    int(l.units.Load()),
		Queued:   l.queue.Len(),
	}
}

// Run ticks until ctx is cancelled, then closes the queue. It pins itself to
// an OS thread and never yields mid-tick; the only wait is the end-of-tick
// sleep. A tick that takes longer than the interval is followed immediately
// by the next one without catch-up.
func (l *Loop) Run(ctx context.Context) error {
	if l.running.Swap(true) {
		return fmt.Errorf("simulation loop already running")
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer l.queue.Close()

	l.log.Info("simulation loop started",
		zap.Duration("interval", l.interval),
		zap.Int("queue_capacity", l.queue.Cap()),
	)

	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	var elapsed float64
	for {
		start := time.Now()
		l.engine.Step(elapsed)
		work := time.Since(start)
		l.afterTick(work)

		if work < l.interval {
			timer.Reset(l.interval - work)
			select {
			case <-timer.C:
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			l.log.Info("simulation loop stopped", zap.Uint64("ticks", l.ticks.Load()))
			return nil
		}
		elapsed = time.Since(start).Seconds()
	}
}

func (l *Loop) afterTick(work time.Duration) {
	tick := l.engine.Ticks()
	l.ticks.Store(tick)
	l.lastWork.Store(int64(work))
	l.units.Store(int64(l.engine.UnitCount()))

	overruns := l.overruns.Load()
	if work > l.interval {
		overruns = l.overruns.Add(1)
		event.Emit(l.engine.Bus(), event.TickOverrun{Tick: tick, Work: work, Interval: l.interval})
		l.log.Warn("tick overran interval",
			zap.Uint64("tick", tick),
			zap.Duration("work", work),
			zap.Duration("interval", l.interval),
		)
	}
	l.engine.recordCadence(resource.Cadence{LastWork: work, Overruns: overruns})
}
