package deadlock

import (
	"testing"

	"github.com/gridfleet/gridfleet/corridor"
	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"

	. "github.com/smartystreets/goconvey/convey"
)

func newResolver(rows, cols int) *Resolver {
	g := grid.New(rows, cols, nil)
	cm := corridor.Build(g, nil, nil)
	return New(g, cm, 3, 6, 10, 15)
}

func TestImportanceOrdering(t *testing.T) {
	Convey("TO_DROPOFF outranks TO_PICKUP which outranks IDLE", t, func() {
		toDropoff := &fleet.Agent{State: fleet.ToDropoff, Path: make([]grid.Cell, 2)}
		toPickup := &fleet.Agent{State: fleet.ToPickup}
		idle := &fleet.Agent{State: fleet.IDLE}

		So(Importance(toDropoff), ShouldBeGreaterThan, Importance(toPickup))
		So(Importance(toPickup), ShouldBeGreaterThan, Importance(idle))
	})
}

func TestDetectGroupsPairDeadlock(t *testing.T) {
	Convey("Given two agents each wanting the other's cell", t, func() {
		r := newResolver(5, 5)
		f := fleet.New()
		a := &fleet.Agent{ID: 1, Pos: grid.Cell{0, 0}, Path: []grid.Cell{{0, 1}}, WaitCount: 7}
		b := &fleet.Agent{ID: 2, Pos: grid.Cell{0, 1}, Path: []grid.Cell{{0, 0}}, WaitCount: 7}
		f.AddAgent(a)
		f.AddAgent(b)

		groups := r.DetectGroups(f)

		Convey("A pair deadlock group of both agents is found", func() {
			So(len(groups), ShouldEqual, 1)
			So(len(groups[0]), ShouldEqual, 2)
		})
	})
}

func TestDetectGroupsCycle(t *testing.T) {
	Convey("Given three agents in a next-cell cycle", t, func() {
		r := newResolver(5, 5)
		f := fleet.New()
		a := &fleet.Agent{ID: 1, Pos: grid.Cell{0, 0}, Path: []grid.Cell{{0, 1}}, WaitCount: 7}
		b := &fleet.Agent{ID: 2, Pos: grid.Cell{0, 1}, Path: []grid.Cell{{1, 1}}, WaitCount: 7}
		c := &fleet.Agent{ID: 3, Pos: grid.Cell{1, 1}, Path: []grid.Cell{{0, 0}}, WaitCount: 7}
		f.AddAgent(a)
		f.AddAgent(b)
		f.AddAgent(c)

		groups := r.DetectGroups(f)

		Convey("A single 3-member cycle is found", func() {
			So(len(groups), ShouldEqual, 1)
			So(len(groups[0]), ShouldEqual, 3)
		})
	})
}

func TestResolveGroupPicksWeakest(t *testing.T) {
	Convey("Given a group with one clearly weaker agent", t, func() {
		r := newResolver(5, 5)
		f := fleet.New()
		strong := &fleet.Agent{ID: 1, Pos: grid.Cell{2, 2}, State: fleet.ToDropoff, Path: []grid.Cell{{2, 3}}}
		weak := &fleet.Agent{ID: 2, Pos: grid.Cell{2, 3}, State: fleet.IDLE}
		f.AddAgent(strong)
		f.AddAgent(weak)

		resolved := r.ResolveGroup(f, []fleet.AgentID{1, 2})

		Convey("The weaker agent gets an emergency single-step path", func() {
			So(resolved, ShouldBeTrue)
			So(len(weak.Path), ShouldEqual, 1)
			So(weak.DecisionMode, ShouldEqual, fleet.Forced)
		})
	})
}

func TestDecisiveActionLadder(t *testing.T) {
	Convey("An agent below YieldThreshold just waits", t, func() {
		r := newResolver(5, 5)
		f := fleet.New()
		a := &fleet.Agent{ID: 1, WaitCount: 1}
		f.AddAgent(a)
		d := r.DecisiveAction(f, a)
		So(d.Action, ShouldEqual, Wait)
	})

	Convey("An agent past ForceMoveThreshold attempts retreat or emergency", t, func() {
		r := newResolver(5, 5)
		f := fleet.New()
		a := &fleet.Agent{ID: 1, Pos: grid.Cell{2, 2}, WaitCount: 11, LastDir: grid.Dir{DRow: 1, DCol: 0}}
		f.AddAgent(a)
		d := r.DecisiveAction(f, a)
		So(d.Action, ShouldBeIn, []Action{RetreatAction, EmergencyAction, Wait})
	})
}

func TestFindEvacuationSpotAdjacent(t *testing.T) {
	Convey("An IDLE agent adjacent to open space finds an evac spot", t, func() {
		r := newResolver(10, 10)
		f := fleet.New()
		a := &fleet.Agent{ID: 1, Pos: grid.Cell{5, 5}}
		f.AddAgent(a)

		spot, ok := r.FindEvacuationSpot(f, a)
		So(ok, ShouldBeTrue)
		So(grid.Manhattan(a.Pos, spot), ShouldBeLessThanOrEqualTo, evacMaxWorthwhileDistance)
	})
}
