package system

import (
	"sort"

	"github.com/rtsgo/server/internal/resource"
)

// Runner executes systems in phase order each tick, flushing the barrier
// after each one. Systems sharing a phase keep their registration order.
type Runner struct {
	systems []System
	sorted  bool
	barrier Barrier
}

func NewRunner(barrier Barrier) *Runner {
	return &Runner{
		systems: make([]System, 0, 8),
		barrier: barrier,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

func (r *Runner) Tick(res *resource.Store) {
	r.ensureSorted()
	for _, s := range r.systems {
		s.Update(res)
		r.barrier.Flush()
	}
}

// Phases returns the registered systems' phases in execution order.
func (r *Runner) Phases() []Phase {
	r.ensureSorted()
	out := make([]Phase, len(r.systems))
	for i, s := range r.systems {
		out[i] = s.Phase()
	}
	return out
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		sort.SliceStable(r.systems, func(i, j int) bool {
			return r.systems[i].Phase() < r.systems[j].Phase()
		})
		r.sorted = true
	}
}
