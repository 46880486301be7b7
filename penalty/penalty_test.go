package penalty

import (
	"testing"

	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDynamicPenaltyMap(t *testing.T) {
	Convey("Given a 3x3 penalty map", t, func() {
		m := New(3, 3)
		pos := grid.Cell{Row: 1, Col: 1}

		Convey("Traffic accumulates and caps", func() {
			for i := 0; i < 100; i++ {
				m.UpdateTraffic(pos, 0, 1.0)
			}
			So(m.GetPenalty(pos, fleet.IDLE), ShouldEqual, maxTrafficPart)
		})

		Convey("Yield zone adds extra penalty only for TO_DROPOFF", func() {
			m.MarkYieldZone(pos, 5)
			So(m.GetPenalty(pos, fleet.ToDropoff), ShouldEqual, 2.0)
			So(m.GetPenalty(pos, fleet.IDLE), ShouldEqual, 0.0)
		})

		Convey("StepUpdate expires the yield zone after its duration", func() {
			m.MarkYieldZone(pos, 2)
			m.StepUpdate(1)
			m.StepUpdate(2)
			So(m.GetPenalty(pos, fleet.ToDropoff), ShouldEqual, 0.0)
		})

		Convey("StepUpdate decays stale base penalty", func() {
			m.UpdateConflict(pos, 0, 1.0)
			before := m.GetPenalty(pos, fleet.IDLE)
			m.StepUpdate(decayAfterTicks + 1)
			after := m.GetPenalty(pos, fleet.IDLE)
			So(after, ShouldBeLessThan, before)
		})
	})
}
