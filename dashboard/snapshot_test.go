package dashboard

import (
	"testing"

	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBuildLayoutClassifiesCells(t *testing.T) {
	Convey("Given a grid with an obstacle and a package's pickup/dropoff", t, func() {
		obstacles := map[grid.Cell]struct{}{{Row: 1, Col: 1}: {}}
		g := grid.New(3, 3, obstacles)
		f := fleet.New()
		f.AddPackage(&fleet.Package{ID: 1, Pickup: grid.Cell{Row: 0, Col: 2}, Dropoff: grid.Cell{Row: 2, Col: 0}, Status: fleet.Waiting})

		layout := BuildLayout(g, f)

		Convey("Each cell is classified correctly", func() {
			So(layout.Rows, ShouldEqual, 3)
			So(layout.Cols, ShouldEqual, 3)
			kinds := make(map[grid.Cell]CellKind)
			for _, cv := range layout.Cells {
				kinds[grid.Cell{Row: cv.Row, Col: cv.Col}] = cv.Kind
			}
			So(kinds[grid.Cell{Row: 1, Col: 1}], ShouldEqual, Obstacle)
			So(kinds[grid.Cell{Row: 0, Col: 2}], ShouldEqual, Pickup)
			So(kinds[grid.Cell{Row: 2, Col: 0}], ShouldEqual, Dropoff)
			So(kinds[grid.Cell{Row: 0, Col: 0}], ShouldEqual, Free)
		})
	})
}

func TestBuildSnapshotReflectsFleetState(t *testing.T) {
	Convey("Given an agent carrying a package", t, func() {
		f := fleet.New()
		pkgID := fleet.PackageID(7)
		agent := &fleet.Agent{ID: 1, Name: "R1", Pos: grid.Cell{Row: 2, Col: 3}, State: fleet.ToDropoff, Package: &pkgID}
		f.AddAgent(agent)
		f.AddPackage(&fleet.Package{ID: pkgID, Name: "P7", Pickup: grid.Cell{Row: 0, Col: 0}, Dropoff: grid.Cell{Row: 5, Col: 5}, Status: fleet.Picked})

		snap := BuildSnapshot(42, f)

		Convey("The snapshot carries the tick, agent position and carried package", func() {
			So(snap.Tick, ShouldEqual, 42)
			So(len(snap.Agents), ShouldEqual, 1)
			So(snap.Agents[0].Row, ShouldEqual, 2)
			So(snap.Agents[0].Col, ShouldEqual, 3)
			So(snap.Agents[0].Package, ShouldEqual, 7)
			So(snap.Agents[0].State, ShouldEqual, fleet.ToDropoff.String())
			So(len(snap.Packages), ShouldEqual, 1)
			So(snap.Packages[0].Status, ShouldEqual, fleet.Picked.String())
		})
	})

	Convey("Given an agent carrying nothing", t, func() {
		f := fleet.New()
		agent := &fleet.Agent{ID: 1, Pos: grid.Cell{Row: 0, Col: 0}, State: fleet.IDLE}
		f.AddAgent(agent)

		snap := BuildSnapshot(1, f)

		Convey("Its package field reports -1", func() {
			So(snap.Agents[0].Package, ShouldEqual, -1)
		})
	})
}
