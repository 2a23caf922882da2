package system

import "github.com/rtsgo/server/internal/resource"

// Phase defines execution ordering within a single tick. The runner flushes
// deferred structural changes after every system, so a component attached in
// one phase is visible to every later phase of the same tick.
type Phase int

const (
	PhaseInput      Phase = iota // 0: drain + apply commands
	PhasePreUpdate               // 1: dispatch last tick's events
	PhaseSeek                    // 2: destination -> velocity
	PhaseIntegrate               // 3: velocity -> position
	PhaseArrival                 // 4: snap + strip components on arrival
	PhaseOutput                  // 5: publish snapshot
	PhaseMetrics                 // 6: cadence samples
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre-update"
	case PhaseSeek:
		return "seek"
	case PhaseIntegrate:
		return "integrate"
	case PhaseArrival:
		return "arrival"
	case PhaseOutput:
		return "output"
	case PhaseMetrics:
		return "metrics"
	default:
		return "unknown"
	}
}

// System is the interface every ECS system implements.
type System interface {
	Phase() Phase
	Update(res *resource.Store)
}

// Barrier applies structural changes queued by a system.
type Barrier interface {
	Flush() int
}
