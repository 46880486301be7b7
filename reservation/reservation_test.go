package reservation

import (
	"testing"

	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"

	. "github.com/smartystreets/goconvey/convey"
)

func TestReservationTable(t *testing.T) {
	Convey("Given an empty reservation table", t, func() {
		table := New()

		Convey("Reserve then IsReserved reports the booking", func() {
			table.Reserve(1, grid.Cell{Row: 0, Col: 0}, 5)
			So(table.IsReserved(grid.Cell{Row: 0, Col: 0}, 5, 0), ShouldBeTrue)
			So(table.IsReserved(grid.Cell{Row: 0, Col: 0}, 5, 1), ShouldBeFalse)
		})

		Convey("ReservePath books every cell and holds the terminal dwell", func() {
			path := []grid.Cell{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}}
			table.ReservePath(2, path, 10)

			So(table.IsReserved(grid.Cell{Row: 0, Col: 1}, 11, 0), ShouldBeTrue)
			holder, ok := table.GetReserver(grid.Cell{Row: 0, Col: 2}, 12)
			So(ok, ShouldBeTrue)
			So(holder, ShouldEqual, fleet.AgentID(2))

			holder, ok = table.GetReserver(grid.Cell{Row: 0, Col: 2}, 12+TimeHorizon)
			So(ok, ShouldBeTrue)
			So(holder, ShouldEqual, fleet.AgentID(2))
		})

		Convey("ReservePath then ClearAgent restores the pre-reserve state", func() {
			before := len(table.reservations)
			path := []grid.Cell{{Row: 1, Col: 1}, {Row: 1, Col: 2}}
			table.ReservePath(3, path, 0)
			table.ClearAgent(3)
			So(len(table.reservations), ShouldEqual, before)
			So(table.IsReserved(grid.Cell{Row: 1, Col: 1}, 0, 0), ShouldBeFalse)
		})

		Convey("ClearBefore purges stale bookings only", func() {
			table.Reserve(1, grid.Cell{Row: 0, Col: 0}, 1)
			table.Reserve(1, grid.Cell{Row: 0, Col: 1}, 5)
			table.ClearBefore(3)
			So(table.IsReserved(grid.Cell{Row: 0, Col: 0}, 1, 0), ShouldBeFalse)
			So(table.IsReserved(grid.Cell{Row: 0, Col: 1}, 5, 0), ShouldBeTrue)
		})

		Convey("WillSwap detects a head-on edge swap", func() {
			table.Reserve(1, grid.Cell{Row: 0, Col: 1}, 5)
			table.Reserve(1, grid.Cell{Row: 0, Col: 0}, 6)
			So(table.WillSwap(2, grid.Cell{Row: 0, Col: 0}, grid.Cell{Row: 0, Col: 1}, 5), ShouldBeTrue)
		})
	})
}
