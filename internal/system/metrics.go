package system

import (
	"time"

	coresys "github.com/rtsgo/server/internal/core/system"
	"github.com/rtsgo/server/internal/resource"
	"github.com/rtsgo/server/internal/world"
	"go.uber.org/zap"
)

// TickSample is one cadence measurement.
type TickSample struct {
	Tick     uint64
	Work     time.Duration
	Overruns uint64
	Units    int
	At       time.Time
}

// TickSink receives samples. Record is called on the simulation goroutine
// and must not block.
type TickSink interface {
	Record(TickSample)
}

// TickSinkFunc adapts a function to TickSink.
type TickSinkFunc func(TickSample)

func (f TickSinkFunc) Record(s TickSample) { f(s) }

// MetricsSystem samples loop cadence every interval ticks. Phase 6 (Metrics).
type MetricsSystem struct {
	state    *world.State
	sink     TickSink
	interval uint64
	log      *zap.Logger
}

// NewMetricsSystem creates the sampler. sink may be nil, in which case
// samples are only logged.
func NewMetricsSystem(state *world.State, sink TickSink, intervalTicks int, log *zap.Logger) *MetricsSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return &MetricsSystem{
		state:    state,
		sink:     sink,
		interval: uint64(intervalTicks),
		log:      log,
	}
}

func (s *MetricsSystem) Phase() coresys.Phase { return coresys.PhaseMetrics }

func (s *MetricsSystem) Update(res *resource.Store) {
	if res.Time.Ticks%s.interval != 0 {
		return
	}
	sample := TickSample{
		Tick:     res.Time.Ticks,
		Work:     res.Cadence.LastWork,
		Overruns: res.Cadence.Overruns,
		Units:    s.state.UnitCount(),
		At:       time.Now(),
	}
	s.log.Debug("tick sample",
		zap.Uint64("tick", sample.Tick),
		zap.Duration("work", sample.Work),
		zap.Uint64("overruns", sample.Overruns),
		zap.Int("units", sample.Units),
	)
	if s.sink != nil {
		s.sink.Record(sample)
	}
}
