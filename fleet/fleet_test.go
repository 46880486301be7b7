package fleet

import (
	"testing"

	"github.com/gridfleet/gridfleet/grid"
)

func TestRing10EvictsOldest(t *testing.T) {
	var r Ring10
	for i := 0; i < 15; i++ {
		r.Push(grid.Cell{Row: i, Col: 0})
	}
	if r.Len() != 10 {
		t.Fatalf("expected len 10, got %d", r.Len())
	}
	last := r.Last(1)
	if last[0].Row != 14 {
		t.Errorf("expected most recent push to be row 14, got %d", last[0].Row)
	}
}

func TestRing10UniqueCountDetectsOscillation(t *testing.T) {
	var r Ring10
	cells := []grid.Cell{{0, 0}, {0, 1}, {0, 0}, {0, 1}, {0, 0}}
	for _, c := range cells {
		r.Push(c)
	}
	if u := r.UniqueCount(5); u != 2 {
		t.Errorf("expected 2 unique cells, got %d", u)
	}
}

func TestFleetAddPreservesOrder(t *testing.T) {
	f := New()
	f.AddAgent(&Agent{ID: 3})
	f.AddAgent(&Agent{ID: 1})
	f.AddAgent(&Agent{ID: 2})
	ids := f.AgentIDs()
	if ids[0] != 3 || ids[1] != 1 || ids[2] != 2 {
		t.Errorf("expected insertion order [3 1 2], got %v", ids)
	}
}

func TestOccupiedCellsExcludesSelf(t *testing.T) {
	f := New()
	f.AddAgent(&Agent{ID: 1, Pos: grid.Cell{Row: 0, Col: 0}})
	f.AddAgent(&Agent{ID: 2, Pos: grid.Cell{Row: 1, Col: 1}})
	occ := f.OccupiedCells(1)
	if _, ok := occ[grid.Cell{Row: 0, Col: 0}]; ok {
		t.Error("excluded agent's cell must not appear")
	}
	if _, ok := occ[grid.Cell{Row: 1, Col: 1}]; !ok {
		t.Error("other agent's cell must appear")
	}
}
