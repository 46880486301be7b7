package oracle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNullOracleAlwaysUnavailable(t *testing.T) {
	Convey("A NullOracle never predicts", t, func() {
		_, ok := (NullOracle{}).PredictDeadlock(context.Background(), Features{Wait: 10})
		So(ok, ShouldBeFalse)
	})
}

func TestLogisticOraclePredicts(t *testing.T) {
	Convey("Given a logistic oracle weighted heavily on wait", t, func() {
		o := NewLogisticOracle(Weights{Coef: [5]float64{0, 0, 0, 0, 1.0}, Intercept: -5})

		Convey("Low wait yields low deadlock risk", func() {
			pred, ok := o.PredictDeadlock(context.Background(), Features{Wait: 0})
			So(ok, ShouldBeTrue)
			So(pred.PDeadlock, ShouldBeLessThan, 0.5)
		})

		Convey("High wait yields high deadlock risk", func() {
			pred, ok := o.PredictDeadlock(context.Background(), Features{Wait: 20})
			So(ok, ShouldBeTrue)
			So(pred.PDeadlock, ShouldBeGreaterThan, 0.9)
		})
	})

	Convey("A nil oracle pointer is treated as unavailable", t, func() {
		var o *LogisticOracle
		_, ok := o.PredictDeadlock(context.Background(), Features{})
		So(ok, ShouldBeFalse)
	})
}

func TestLoadLogisticOracleFromYAML(t *testing.T) {
	Convey("Given a YAML weights sidecar file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "weights.yaml")
		contents := "coef: [0, 0, 0, 0, 1.0]\nintercept: -5\n"
		err := os.WriteFile(path, []byte(contents), 0o644)
		So(err, ShouldBeNil)

		Convey("It loads and predicts high risk for a high wait, like the in-memory weights", func() {
			o, err := LoadLogisticOracle(path)
			So(err, ShouldBeNil)
			pred, ok := o.PredictDeadlock(context.Background(), Features{Wait: 20})
			So(ok, ShouldBeTrue)
			So(pred.PDeadlock, ShouldBeGreaterThan, 0.9)
		})
	})
}
