package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gridfleet/gridfleet/grid"

	. "github.com/smartystreets/goconvey/convey"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	Convey("Given a well-formed config file", t, func() {
		path := writeConfig(t, `{
			"settings": {"rows": 8, "cols": 8},
			"walls": [[0,3,7,3]],
			"robots": [{"pos":[0,0]}],
			"packages": [{"pickup":[0,5],"dropoff":[5,5]}]
		}`)

		cfg, err := Load(path)

		Convey("It loads without error", func() {
			So(err, ShouldBeNil)
			So(cfg.Grid.Rows, ShouldEqual, 8)
			So(cfg.Grid.Cols, ShouldEqual, 8)
		})

		Convey("The wall rectangle is expanded into obstacles", func() {
			So(cfg.Grid.IsObstacle(grid.Cell{Row: 0, Col: 3}), ShouldBeTrue)
			So(cfg.Grid.IsObstacle(grid.Cell{Row: 4, Col: 3}), ShouldBeTrue)
		})

		Convey("BuildFleet defaults ids and names", func() {
			f := BuildFleet(cfg)
			a := f.Agent(1)
			So(a, ShouldNotBeNil)
			So(a.Name, ShouldEqual, "R1")
		})
	})
}

func TestLoadRejectsOutOfBoundsRobot(t *testing.T) {
	Convey("Given a robot placed outside the grid", t, func() {
		path := writeConfig(t, `{
			"settings": {"rows": 5, "cols": 5},
			"robots": [{"pos":[10,10]}],
			"packages": []
		}`)

		_, err := Load(path)

		Convey("Load fails with a validation error", func() {
			So(err, ShouldNotBeNil)
			verr, ok := err.(*ValidationError)
			So(ok, ShouldBeTrue)
			So(len(verr.Errors), ShouldBeGreaterThan, 0)
		})
	})
}

func TestLoadRejectsObstacleSpawn(t *testing.T) {
	Convey("Given a package pickup placed on a wall", t, func() {
		path := writeConfig(t, `{
			"settings": {"rows": 5, "cols": 5},
			"walls": [[0,0,4,0]],
			"robots": [{"pos":[1,1]}],
			"packages": [{"pickup":[2,0],"dropoff":[3,3]}]
		}`)

		_, err := Load(path)

		Convey("Load fails", func() {
			So(err, ShouldNotBeNil)
		})
	})
}
