package deadlock

import (
	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
)

const (
	criticalNearDropoffRadius = 2
	evacMaxWorthwhileDistance = 3
	evacBFSDepth              = 4
	evacBFSVisitedCap         = 30
	cornerObstacleThreshold   = 2
)

// CriticalCells returns the union of every TO_DROPOFF agent's remaining
// path cells.
func CriticalCells(f *fleet.Fleet) map[grid.Cell]struct{} {
	out := make(map[grid.Cell]struct{})
	for _, a := range f.Agents {
		if a.State != fleet.ToDropoff {
			continue
		}
		for _, c := range a.Path {
			out[c] = struct{}{}
		}
	}
	return out
}

// isNearActiveDropoff reports whether pos is within radius of some live
// (TO_DROPOFF) package's dropoff cell.
func isNearActiveDropoff(f *fleet.Fleet, pos grid.Cell, radius int) bool {
	for _, a := range f.Agents {
		if a.State != fleet.ToDropoff || a.Package == nil {
			continue
		}
		pkg := f.Package(*a.Package)
		if pkg == nil {
			continue
		}
		if grid.Manhattan(pos, pkg.Dropoff) <= radius {
			return true
		}
	}
	return false
}

// NeedsCriticalPathEvac reports whether agent (expected IDLE or HOME)
// sits on another agent's critical path AND is near a live dropoff,
// which is the spec's joint condition for triggering an evacuation.
func NeedsCriticalPathEvac(f *fleet.Fleet, agent *fleet.Agent) bool {
	if agent.State != fleet.IDLE && agent.State != fleet.HOME {
		return false
	}
	critical := CriticalCells(f)
	if _, onPath := critical[agent.Pos]; !onPath {
		return false
	}
	return isNearActiveDropoff(f, agent.Pos, criticalNearDropoffRadius)
}

// FindEvacuationSpot runs the two-phase (three-phase, counting the final
// fallback) search for where a blocking agent should move to get out of
// a carrier's way: an adjacent non-critical cell with decent corridor
// score, else a bounded BFS favoring open corners, else the nearest free
// 8-neighbor. Returns false (no evacuation) if nothing found within
// evacMaxWorthwhileDistance.
func (r *Resolver) FindEvacuationSpot(f *fleet.Fleet, agent *fleet.Agent) (grid.Cell, bool) {
	critical := CriticalCells(f)
	occupied := f.OccupiedCells(agent.ID)

	if spot, ok := r.adjacentNonCriticalSpot(agent.Pos, critical, occupied); ok {
		return spot, true
	}
	if spot, ok := r.bfsEvacSpot(agent.Pos, critical, occupied); ok {
		if grid.Manhattan(agent.Pos, spot) <= evacMaxWorthwhileDistance {
			return spot, true
		}
		return grid.Cell{}, false
	}
	if spot, ok := r.nearestFreeNeighbor(agent.Pos, occupied); ok {
		if grid.Manhattan(agent.Pos, spot) <= evacMaxWorthwhileDistance {
			return spot, true
		}
	}
	return grid.Cell{}, false
}

func (r *Resolver) adjacentNonCriticalSpot(pos grid.Cell, critical, occupied map[grid.Cell]struct{}) (grid.Cell, bool) {
	for _, n := range grid.Orthogonal4(pos) {
		if !r.g.IsFree(n) {
			continue
		}
		if _, crit := critical[n]; crit {
			continue
		}
		if _, occ := occupied[n]; occ {
			continue
		}
		if r.cm.CorridorScore(n) >= 4 {
			return n, true
		}
	}
	return grid.Cell{}, false
}

func (r *Resolver) bfsEvacSpot(start grid.Cell, critical, occupied map[grid.Cell]struct{}) (grid.Cell, bool) {
	type qitem struct {
		cell  grid.Cell
		depth int
	}
	visited := map[grid.Cell]struct{}{start: {}}
	queue := []qitem{{start, 0}}

	best := grid.Cell{}
	bestScore := -1.0
	found := false

	for len(queue) > 0 && len(visited) < evacBFSVisitedCap {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= evacBFSDepth {
			continue
		}
		for _, n := range grid.Orthogonal4(cur.cell) {
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}
			if !r.g.IsFree(n) {
				continue
			}
			if _, occ := occupied[n]; occ {
				continue
			}
			if _, crit := critical[n]; !crit {
				score := 2*float64(r.cm.CorridorScore(n)) - 0.5*float64(cur.depth+1)
				if countNeighboringObstacles(r.g, n) >= cornerObstacleThreshold {
					score += 5
				}
				if !found || score > bestScore {
					best, bestScore, found = n, score, true
				}
			}
			queue = append(queue, qitem{n, cur.depth + 1})
		}
	}
	return best, found
}

func (r *Resolver) nearestFreeNeighbor(pos grid.Cell, occupied map[grid.Cell]struct{}) (grid.Cell, bool) {
	for _, n := range grid.Neighbors8(pos) {
		if !r.g.IsFree(n) {
			continue
		}
		if _, occ := occupied[n]; occ {
			continue
		}
		return n, true
	}
	return grid.Cell{}, false
}

func countNeighboringObstacles(g *grid.Grid, c grid.Cell) int {
	n := 0
	for _, nb := range grid.Orthogonal4(c) {
		if g.IsObstacle(nb) {
			n++
		}
	}
	return n
}
