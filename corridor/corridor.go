// Package corridor precomputes static cost-shaping information from the
// grid: corridor width, main-corridor highways, and pickup/dropoff flow
// direction.
package corridor

import (
	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
)

// horizontalRunMin and verticalRunMin mirror the original's run-length
// thresholds for promoting a moderate-score run of cells to a main
// corridor even when no single cell clears the score-6 bar.
const (
	horizontalRunMin  = 10
	verticalRunMin    = 5
	runScoreThreshold = 4
	mainCorridorScore = 6
)

// Map is the precomputed static analysis of a grid: per-cell corridor
// score, main-corridor membership, highway bonus, and pickup/dropoff
// flow direction.
type Map struct {
	g            *grid.Grid
	mainCorridor map[grid.Cell]struct{}
	highway      map[grid.Cell]float64
	flow         grid.Dir
}

// Build computes a Map for g given the package pickup/dropoff cells used
// to derive flow direction.
func Build(g *grid.Grid, pickups, dropoffs []grid.Cell) *Map {
	m := &Map{g: g}
	m.mainCorridor = detectMainCorridors(g)
	m.highway = buildHighwayMap(g, m.mainCorridor)
	m.flow = calculateFlowDirection(pickups, dropoffs)
	return m
}

// CorridorScore delegates to the underlying grid.
func (m *Map) CorridorScore(c grid.Cell) int { return m.g.CorridorScore(c) }

// IsOnMainCorridor reports whether c was classified as a main corridor
// cell.
func (m *Map) IsOnMainCorridor(c grid.Cell) bool {
	_, ok := m.mainCorridor[c]
	return ok
}

// HighwayBonus returns the precomputed highway bonus for c (0 for
// obstacles).
func (m *Map) HighwayBonus(c grid.Cell) float64 {
	return m.highway[c]
}

// FlowDirection returns the sign of (mean dropoff - mean pickup) as a
// direction. The pathfinder's successor ordering does not consult it.
func (m *Map) FlowDirection() grid.Dir { return m.flow }

// PreferredDirection returns the flow direction for agents heading to a
// dropoff, and its inverse for agents heading to a pickup or home —
// directly mirroring the original's get_preferred_direction.
func (m *Map) PreferredDirection(state fleet.AgentState) grid.Dir {
	switch state {
	case fleet.ToDropoff:
		return m.flow
	case fleet.ToPickup, fleet.HOME:
		return grid.Dir{DRow: -m.flow.DRow, DCol: -m.flow.DCol}
	default:
		return grid.Zero
	}
}

func detectMainCorridors(g *grid.Grid) map[grid.Cell]struct{} {
	main := make(map[grid.Cell]struct{})

	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			cell := grid.Cell{Row: r, Col: c}
			if g.IsObstacle(cell) {
				continue
			}
			if g.CorridorScore(cell) >= mainCorridorScore {
				main[cell] = struct{}{}
			}
		}
	}

	// Horizontal runs of moderate-score cells.
	for r := 0; r < g.Rows; r++ {
		run := 0
		flushRun := func(endCol int) {
			if run >= horizontalRunMin {
				for c := endCol - run; c < endCol; c++ {
					main[grid.Cell{Row: r, Col: c}] = struct{}{}
				}
			}
			run = 0
		}
		for c := 0; c < g.Cols; c++ {
			cell := grid.Cell{Row: r, Col: c}
			if !g.IsObstacle(cell) && g.CorridorScore(cell) >= runScoreThreshold {
				run++
			} else {
				flushRun(c)
			}
		}
		flushRun(g.Cols)
	}

	// Vertical runs of moderate-score cells.
	for c := 0; c < g.Cols; c++ {
		run := 0
		flushRun := func(endRow int) {
			if run >= verticalRunMin {
				for r := endRow - run; r < endRow; r++ {
					main[grid.Cell{Row: r, Col: c}] = struct{}{}
				}
			}
			run = 0
		}
		for r := 0; r < g.Rows; r++ {
			cell := grid.Cell{Row: r, Col: c}
			if !g.IsObstacle(cell) && g.CorridorScore(cell) >= runScoreThreshold {
				run++
			} else {
				flushRun(r)
			}
		}
		flushRun(g.Rows)
	}

	return main
}

func buildHighwayMap(g *grid.Grid, main map[grid.Cell]struct{}) map[grid.Cell]float64 {
	bonus := make(map[grid.Cell]float64, g.Rows*g.Cols)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			cell := grid.Cell{Row: r, Col: c}
			if g.IsObstacle(cell) {
				bonus[cell] = 0
				continue
			}
			v := 0.0
			if _, ok := main[cell]; ok {
				v += 3.0
			}
			v += float64(g.CorridorScore(cell)) * 0.3
			if edgeDistance(cell, g) <= 3 {
				v += 1.0
			}
			bonus[cell] = v
		}
	}
	return bonus
}

func edgeDistance(c grid.Cell, g *grid.Grid) int {
	d := minOf(c.Row, g.Rows-1-c.Row)
	d = minOf(d, c.Col)
	d = minOf(d, g.Cols-1-c.Col)
	return d
}

func minOf(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func calculateFlowDirection(pickups, dropoffs []grid.Cell) grid.Dir {
	if len(pickups) == 0 || len(dropoffs) == 0 {
		return grid.Zero
	}
	pr, pc := centroid(pickups)
	dr, dc := centroid(dropoffs)
	return grid.Direction(grid.Cell{Row: int(pr), Col: int(pc)}, grid.Cell{Row: int(dr), Col: int(dc)})
}

func centroid(cells []grid.Cell) (float64, float64) {
	var sr, sc float64
	for _, c := range cells {
		sr += float64(c.Row)
		sc += float64(c.Col)
	}
	n := float64(len(cells))
	return sr / n, sc / n
}
