package deadlock

import (
	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
)

const preemptImportanceGap = 200

// DecisiveAction implements the tiered ladder for an agent whose
// WaitCount has reached YieldThreshold. Callers apply the returned
// Decision to the agent (the resolver never mutates agent state itself,
// to keep the scheduler the sole place where commits happen).
func (r *Resolver) DecisiveAction(f *fleet.Fleet, agent *fleet.Agent) Decision {
	w := agent.WaitCount
	switch {
	case w < r.YieldThreshold:
		return Decision{Action: Wait}

	case w < r.DecisionWaitThreshold:
		next := nextCellOf(agent)
		blocker, ok := occupantOf(f, next)
		if !ok || blocker.ID == agent.ID {
			return Decision{Action: Repath}
		}
		if r.decideWhoYields(agent, blocker) == agent.ID {
			if pos, found := r.findYieldPosition(f, agent, blocker); found {
				return Decision{Action: YieldTo, YieldTarget: &pos}
			}
			return Decision{Action: Wait}
		}
		return Decision{Action: Repath}

	case w < r.ForceMoveThreshold:
		return Decision{Action: Repath}

	case w < r.DeadlockThreshold:
		if path, ok := r.findRetreatPath(f, agent); ok {
			return Decision{Action: RetreatAction, RetreatPath: path}
		}
		if pos, ok := r.emergencyMove(f, agent, false); ok {
			return Decision{Action: EmergencyAction, EmergencyPos: &pos}
		}
		return Decision{Action: Wait}

	default:
		if agent.State == fleet.IDLE || agent.State == fleet.HOME {
			if pos, ok := r.emergencyMove(f, agent, false); ok {
				return Decision{Action: EmergencyAction, EmergencyPos: &pos}
			}
			return Decision{Action: Wait}
		}
		next := nextCellOf(agent)
		if occupant, ok := occupantOf(f, next); ok && occupant.ID != agent.ID {
			if Importance(agent)-Importance(occupant) >= preemptImportanceGap {
				return Decision{Action: PreemptOccupant, PreemptAgent: occupant.ID}
			}
		}
		if pos, ok := r.emergencyMove(f, agent, false); ok {
			return Decision{Action: EmergencyAction, EmergencyPos: &pos}
		}
		return Decision{Action: Wait}
	}
}

// decideWhoYields resolves which of self/blocker must yield: the
// higher-importance agent wins; ties broken by longer remaining path,
// then by lower id.
func (r *Resolver) decideWhoYields(self, blocker *fleet.Agent) fleet.AgentID {
	si, bi := Importance(self), Importance(blocker)
	if si != bi {
		if si > bi {
			return blocker.ID
		}
		return self.ID
	}
	if len(self.Path) != len(blocker.Path) {
		if len(self.Path) > len(blocker.Path) {
			return blocker.ID
		}
		return self.ID
	}
	if self.ID < blocker.ID {
		return blocker.ID
	}
	return self.ID
}

// findYieldPosition searches self's 8-neighborhood for the best cell to
// step aside to: highest CorridorScore + 2x minimum Manhattan distance to
// the blocker's next 5 path cells, excluding those cells and any other
// agent's current position.
func (r *Resolver) findYieldPosition(f *fleet.Fleet, self, blocker *fleet.Agent) (grid.Cell, bool) {
	avoid := map[grid.Cell]struct{}{}
	limit := 5
	if len(blocker.Path) < limit {
		limit = len(blocker.Path)
	}
	for i := 0; i < limit; i++ {
		avoid[blocker.Path[i]] = struct{}{}
	}
	occupied := f.OccupiedCells(self.ID)

	best := grid.Cell{}
	bestScore := -1.0
	found := false
	for _, n := range grid.Neighbors8(self.Pos) {
		if !r.g.IsFree(n) {
			continue
		}
		if _, avoided := avoid[n]; avoided {
			continue
		}
		if _, occ := occupied[n]; occ {
			continue
		}
		minDist := minManhattanToSet(n, blocker.Path, limit)
		score := float64(r.cm.CorridorScore(n)) + 2*float64(minDist)
		if !found || score > bestScore {
			best, bestScore, found = n, score, true
		}
	}
	return best, found
}

func minManhattanToSet(from grid.Cell, path []grid.Cell, limit int) int {
	if limit > len(path) {
		limit = len(path)
	}
	if limit == 0 {
		return 0
	}
	min := -1
	for i := 0; i < limit; i++ {
		d := grid.Manhattan(from, path[i])
		if min == -1 || d < min {
			min = d
		}
	}
	return min
}

// findRetreatPath steps up to 3 cells opposite the agent's last
// direction, stopping at obstacles or other agents.
func (r *Resolver) findRetreatPath(f *fleet.Fleet, agent *fleet.Agent) ([]grid.Cell, bool) {
	if agent.LastDir == grid.Zero {
		return nil, false
	}
	back := grid.Dir{DRow: -agent.LastDir.DRow, DCol: -agent.LastDir.DCol}
	var path []grid.Cell
	cur := agent.Pos
	for i := 0; i < 3; i++ {
		next := grid.Cell{Row: cur.Row + back.DRow, Col: cur.Col + back.DCol}
		if !r.g.IsFree(next) {
			break
		}
		if _, occ := occupantOf(f, next); occ {
			break
		}
		path = append(path, next)
		cur = next
	}
	if len(path) == 0 {
		return nil, false
	}
	return path, true
}
