package world

import (
	"testing"

	"github.com/rtsgo/server/internal/component"
)

func collect(s *State) map[string]UnitView {
	out := map[string]UnitView{}
	for v := range s.ChangedUnits() {
		out[v.Identity.ID] = v
	}
	return out
}

func TestApplyCreate_DeferredUntilFlush(t *testing.T) {
	s := NewState()
	e, res := s.ApplyCreate("u1", 1, 2)
	if res != ResultApplied {
		t.Fatalf("result = %v", res)
	}
	if got, ok := s.Lookup("u1"); !ok || got != e {
		t.Fatal("index must be updated immediately")
	}
	if s.Positions.Has(e) {
		t.Fatal("position visible before flush")
	}
	s.Flush()
	v, ok := s.Unit("u1")
	if !ok {
		t.Fatal("unit missing after flush")
	}
	if v.Position != (component.Position{X: 1, Y: 2}) || v.Destination != nil {
		t.Errorf("unexpected view %+v", v)
	}
}

func TestApplyCreate_RejectsDuplicate(t *testing.T) {
	s := NewState()
	first, _ := s.ApplyCreate("dup", 0, 0)
	again, res := s.ApplyCreate("dup", 5, 5)
	if res != ResultDuplicate {
		t.Fatalf("result = %v, want duplicate", res)
	}
	if again != first {
		t.Errorf("duplicate returned entity %d, want existing %d", again, first)
	}
	s.Flush()

	if s.UnitCount() != 1 {
		t.Errorf("UnitCount = %d, want 1", s.UnitCount())
	}
	v, _ := s.Unit("dup")
	if v.Position != (component.Position{}) {
		t.Errorf("existing unit was modified: %+v", v.Position)
	}
	if s.Positions.Len() != 1 || s.Identities.Len() != 1 {
		t.Errorf("store holds %d positions, %d identities", s.Positions.Len(), s.Identities.Len())
	}
}

func TestApplyDestination(t *testing.T) {
	s := NewState()
	if _, res := s.ApplyDestination("ghost", 1, 1); res != ResultUnknownUnit {
		t.Fatalf("unknown id result = %v", res)
	}
	if s.Buffer().Len() != 0 {
		t.Fatal("unknown id queued structural changes")
	}

	s.ApplyCreate("u1", 0, 0)
	s.ApplyDestination("u1", 3, 4)
	s.ApplyDestination("u1", 5, 6)
	s.Flush()
	v, _ := s.Unit("u1")
	if v.Destination == nil || *v.Destination != (component.Destination{X: 5, Y: 6}) {
		t.Fatalf("last destination in batch must win, got %+v", v.Destination)
	}

	s.ApplyDestination("u1", 7, 8)
	if s.Buffer().Len() != 0 {
		t.Error("overwriting an existing destination must not defer")
	}
	v, _ = s.Unit("u1")
	if *v.Destination != (component.Destination{X: 7, Y: 8}) {
		t.Errorf("destination not overwritten in place: %+v", v.Destination)
	}
}

func TestReset_DiscardsEverything(t *testing.T) {
	s := NewState()
	old, _ := s.ApplyCreate("u1", 0, 0)
	s.Flush()
	s.ApplyCreate("u2", 0, 0)
	gen := s.Generation()

	s.Reset()
	if s.Generation() != gen+1 {
		t.Errorf("generation = %d, want %d", s.Generation(), gen+1)
	}
	if s.UnitCount() != 0 || s.Buffer().Len() != 0 || s.Positions.Len() != 0 {
		t.Fatal("reset left state behind")
	}
	s.Flush()
	if s.Positions.Len() != 0 {
		t.Fatal("deferred create from before reset leaked into the new store")
	}

	fresh, _ := s.ApplyCreate("u1", 0, 0)
	if fresh == old {
		t.Error("entity handle reused across reset")
	}
}

func TestChangedUnits(t *testing.T) {
	s := NewState()
	s.ApplyCreate("a", 0, 0)
	s.ApplyCreate("b", 1, 1)
	s.Flush()

	first := collect(s)
	if len(first) != 2 {
		t.Fatalf("first poll reported %d units, want 2", len(first))
	}
	if len(collect(s)) != 0 {
		t.Fatal("unchanged units reported twice")
	}

	s.ApplyDestination("b", 9, 9)
	s.Flush()
	changed := s.ChangedUnits()
	got := map[string]bool{}
	for v := range changed {
		got[v.Identity.ID] = true
	}
	if len(got) != 1 || !got["b"] {
		t.Fatalf("changed = %v, want only b", got)
	}
	for v := range changed {
		t.Fatalf("second range reported %s again", v.Identity.ID)
	}

	e, _ := s.Lookup("a")
	p, _ := s.Positions.Get(e)
	p.X = 4
	seq := s.ChangedUnits()
	p.X = 5
	for v := range seq {
		if v.Identity.ID != "a" || v.Position.X != 5 {
			t.Errorf("sequence must read values lazily, got %+v", v)
		}
	}

	s.Reset()
	count := 0
	for range seq {
		count++
	}
	if count != 0 {
		t.Errorf("sequence yielded %d units from a discarded store", count)
	}
}

func TestChangedUnits_EarlyBreak(t *testing.T) {
	s := NewState()
	for _, id := range []string{"a", "b", "c"} {
		s.ApplyCreate(id, 0, 0)
	}
	s.Flush()
	n := 0
	for range s.ChangedUnits() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("iterated %d after break", n)
	}
	if rest := collect(s); len(rest) != 2 {
		t.Errorf("next poll reported %d units, want the 2 not yet yielded", len(rest))
	}
}

func TestChangedUnits_DroppedSequenceKeepsChanges(t *testing.T) {
	s := NewState()
	s.ApplyCreate("a", 0, 0)
	s.Flush()
	_ = s.ChangedUnits()
	if got := collect(s); len(got) != 1 {
		t.Fatalf("poll after a dropped sequence = %v, want a", got)
	}
}
