package scheduler

import (
	"testing"

	"github.com/gridfleet/gridfleet/config"
	"github.com/gridfleet/gridfleet/corridor"
	"github.com/gridfleet/gridfleet/deadlock"
	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
	"github.com/gridfleet/gridfleet/pathfinder"
	"github.com/gridfleet/gridfleet/taskmanager"

	. "github.com/smartystreets/goconvey/convey"
)

func newTestScheduler(rows, cols int) (*Scheduler, *fleet.Fleet) {
	g := grid.New(rows, cols, nil)
	cm := corridor.Build(g, nil, nil)
	d := config.DefaultTunables()
	pf := pathfinder.New(g, cm, pathfinder.Tunables{
		TurnPenalty: d.TurnPenalty, CorridorBonus: d.CorridorBonus, WaitCost: d.WaitCost,
		MaxWaitActions: d.MaxWaitActions, TimeHorizon: 40,
	}, nil, nil)
	tm := taskmanager.New(g, pf, d, nil)
	dl := deadlock.New(g, cm, d.YieldThreshold, d.DecisionWaitThreshold, d.ForceMoveThreshold, d.DeadlockThreshold)
	f := fleet.New()
	s := New(f, g, cm, pf, tm, dl, nil, d, nil, nil)
	return s, f
}

func TestStraightDeliveryScenario(t *testing.T) {
	Convey("Given one agent and one package on a straight, open line", t, func() {
		s, f := newTestScheduler(10, 10)
		agent := &fleet.Agent{ID: 1, Name: "R1", Home: grid.Cell{0, 0}, Pos: grid.Cell{0, 0}, State: fleet.IDLE}
		f.AddAgent(agent)
		f.AddPackage(&fleet.Package{ID: 1, Name: "P1", Pickup: grid.Cell{0, 5}, Dropoff: grid.Cell{5, 5}, Status: fleet.Waiting})

		for i := 0; i < 40 && !s.Done(); i++ {
			s.Step()
		}

		Convey("The package is delivered and the agent returns home", func() {
			So(f.Package(1).Status, ShouldEqual, fleet.Delivered)
			So(agent.Pos, ShouldResemble, agent.Home)
			So(agent.State, ShouldEqual, fleet.IDLE)
		})
	})
}

func TestNoAgentsTickIsNoOp(t *testing.T) {
	Convey("Given a fleet with no agents or packages", t, func() {
		s, _ := newTestScheduler(5, 5)

		Convey("A tick completes and the simulation is immediately done", func() {
			s.Step()
			So(s.Done(), ShouldBeTrue)
		})
	})
}

func TestHeadOnAgentsNeverCollide(t *testing.T) {
	Convey("Given two agents approaching each other on a single-row line", t, func() {
		s, f := newTestScheduler(1, 8)
		a := &fleet.Agent{ID: 1, Name: "A", Home: grid.Cell{0, 0}, Pos: grid.Cell{0, 0}, State: fleet.IDLE}
		b := &fleet.Agent{ID: 2, Name: "B", Home: grid.Cell{0, 7}, Pos: grid.Cell{0, 7}, State: fleet.IDLE}
		f.AddAgent(a)
		f.AddAgent(b)
		f.AddPackage(&fleet.Package{ID: 1, Pickup: grid.Cell{0, 4}, Dropoff: grid.Cell{0, 7}, Status: fleet.Waiting})
		f.AddPackage(&fleet.Package{ID: 2, Pickup: grid.Cell{0, 3}, Dropoff: grid.Cell{0, 0}, Status: fleet.Waiting})

		for i := 0; i < 60 && !s.Done(); i++ {
			s.Step()
			So(a.Pos, ShouldNotResemble, b.Pos)
		}

		Convey("No collision ever occurs across the whole run", func() {
			So(a.Pos, ShouldNotResemble, b.Pos)
		})
	})
}
