// Package dashboard renders a read-only, periodic view of the fleet over
// HTTP and websocket. It is a consumer only: it never feeds decisions
// back into the scheduler.
package dashboard

import (
	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
)

// CellKind classifies a grid cell for rendering.
type CellKind int

const (
	Free CellKind = iota
	Obstacle
	Pickup
	Dropoff
)

// CellView is a single static grid cell, computed once at startup; the
// layout never changes after load.
type CellView struct {
	Row, Col int
	Kind     CellKind
}

// AgentView is one agent's rendered state for a single tick.
type AgentView struct {
	ID      fleet.AgentID
	Name    string
	Row     int
	Col     int
	State   string
	Mode    string
	Package int
}

// PackageView is one package's rendered state for a single tick.
type PackageView struct {
	ID      fleet.PackageID
	Name    string
	Status  string
	Pickup  [2]int
	Dropoff [2]int
}

// Snapshot is one tick's worth of fleet state, the unit pushed to
// clients over websocket.
type Snapshot struct {
	Tick     int
	Agents   []AgentView
	Packages []PackageView
}

// StaticLayout is computed once from the grid and doesn't change tick to
// tick; it is served with the index page rather than over the socket.
type StaticLayout struct {
	Rows, Cols int
	Cells      []CellView
}

// BuildLayout converts the static grid and package set into the
// one-time cell layout the client renders underneath live agent
// markers.
func BuildLayout(g *grid.Grid, f *fleet.Fleet) StaticLayout {
	layout := StaticLayout{Rows: g.Rows, Cols: g.Cols}
	pickups := make(map[grid.Cell]struct{})
	dropoffs := make(map[grid.Cell]struct{})
	for _, pid := range f.PackageIDs() {
		p := f.Package(pid)
		pickups[p.Pickup] = struct{}{}
		dropoffs[p.Dropoff] = struct{}{}
	}

	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			cell := grid.Cell{Row: r, Col: c}
			kind := Free
			switch {
			case g.IsObstacle(cell):
				kind = Obstacle
			case func() bool { _, ok := dropoffs[cell]; return ok }():
				kind = Dropoff
			case func() bool { _, ok := pickups[cell]; return ok }():
				kind = Pickup
			}
			layout.Cells = append(layout.Cells, CellView{Row: r, Col: c, Kind: kind})
		}
	}
	return layout
}

// BuildSnapshot builds this tick's dynamic view from the live fleet.
func BuildSnapshot(tick int, f *fleet.Fleet) Snapshot {
	snap := Snapshot{Tick: tick}
	for _, id := range f.AgentIDs() {
		a := f.Agent(id)
		pkg := -1
		if a.Package != nil {
			pkg = int(*a.Package)
		}
		snap.Agents = append(snap.Agents, AgentView{
			ID: a.ID, Name: a.Name, Row: a.Pos.Row, Col: a.Pos.Col,
			State: a.State.String(), Mode: a.DecisionMode.String(), Package: pkg,
		})
	}
	for _, pid := range f.PackageIDs() {
		p := f.Package(pid)
		snap.Packages = append(snap.Packages, PackageView{
			ID: p.ID, Name: p.Name, Status: p.Status.String(),
			Pickup: [2]int{p.Pickup.Row, p.Pickup.Col}, Dropoff: [2]int{p.Dropoff.Row, p.Dropoff.Col},
		})
	}
	return snap
}
