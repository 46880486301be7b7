package corridor

import (
	"testing"

	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"

	. "github.com/smartystreets/goconvey/convey"
)

func TestBuildMainCorridorAndHighway(t *testing.T) {
	Convey("Given an open 12x12 grid", t, func() {
		g := grid.New(12, 12, nil)
		m := Build(g, []grid.Cell{{Row: 0, Col: 0}}, []grid.Cell{{Row: 11, Col: 11}})

		Convey("A wide-open center cell is on the main corridor", func() {
			So(m.IsOnMainCorridor(grid.Cell{Row: 5, Col: 5}), ShouldBeTrue)
		})

		Convey("Highway bonus is positive for a main corridor cell", func() {
			So(m.HighwayBonus(grid.Cell{Row: 5, Col: 5}), ShouldBeGreaterThan, 0)
		})

		Convey("Flow direction points from pickups toward dropoffs", func() {
			So(m.FlowDirection(), ShouldResemble, grid.Dir{DRow: 1, DCol: 1})
		})

		Convey("PreferredDirection inverts for TO_PICKUP vs TO_DROPOFF", func() {
			toDrop := m.PreferredDirection(fleet.ToDropoff)
			toPick := m.PreferredDirection(fleet.ToPickup)
			So(toDrop.DRow, ShouldEqual, -toPick.DRow)
			So(toDrop.DCol, ShouldEqual, -toPick.DCol)
		})
	})
}

func TestRouteCacheEviction(t *testing.T) {
	Convey("Given a route cache with capacity 2", t, func() {
		rc := NewRouteCache(2)
		k1 := RouteCacheKey{Start: grid.Cell{0, 0}, Goal: grid.Cell{1, 1}, State: fleet.ToPickup}
		k2 := RouteCacheKey{Start: grid.Cell{0, 0}, Goal: grid.Cell{2, 2}, State: fleet.ToPickup}
		k3 := RouteCacheKey{Start: grid.Cell{0, 0}, Goal: grid.Cell{3, 3}, State: fleet.ToPickup}

		rc.Put(k1, []grid.Cell{{0, 0}, {1, 1}})
		rc.Put(k2, []grid.Cell{{0, 0}, {2, 2}})

		Convey("Accessing k1 protects it from eviction", func() {
			rc.Get(k1)
			rc.Put(k3, []grid.Cell{{0, 0}, {3, 3}})

			_, k1ok := rc.Get(k1)
			_, k2ok := rc.Get(k2)
			So(k1ok, ShouldBeTrue)
			So(k2ok, ShouldBeFalse)
		})
	})

	Convey("Invalidate drops routes crossing blocked cells", t, func() {
		rc := NewRouteCache(10)
		k := RouteCacheKey{Start: grid.Cell{0, 0}, Goal: grid.Cell{2, 2}, State: fleet.ToPickup}
		rc.Put(k, []grid.Cell{{0, 0}, {1, 1}, {2, 2}})
		rc.Invalidate(map[grid.Cell]struct{}{{1, 1}: {}})
		_, ok := rc.Get(k)
		So(ok, ShouldBeFalse)
	})
}
