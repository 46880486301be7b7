// Package deadlock detects stuck agent chains and decides how to break
// them: pick a yielder, force a retreat, or as a last resort, an
// emergency step.
package deadlock

import (
	"github.com/gridfleet/gridfleet/corridor"
	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
)

const maxTraceDepth = 10

// Action is the decisive action chosen for an agent this tick.
type Action int

const (
	NoAction Action = iota
	Wait
	YieldTo
	Repath
	RetreatAction
	EmergencyAction
	PreemptOccupant
)

// Decision is the result of evaluating one agent's decisive action.
type Decision struct {
	Action       Action
	YieldTarget  *grid.Cell
	RetreatPath  []grid.Cell
	EmergencyPos *grid.Cell
	PreemptAgent fleet.AgentID
}

// Resolver holds the thresholds and grid/corridor references needed to
// detect and resolve deadlocks.
type Resolver struct {
	g  *grid.Grid
	cm *corridor.Map

	YieldThreshold        int
	DecisionWaitThreshold int
	ForceMoveThreshold    int
	DeadlockThreshold     int
}

// New builds a Resolver.
func New(g *grid.Grid, cm *corridor.Map, yieldT, decisionWaitT, forceMoveT, deadlockT int) *Resolver {
	return &Resolver{g: g, cm: cm, YieldThreshold: yieldT, DecisionWaitThreshold: decisionWaitT, ForceMoveThreshold: forceMoveT, DeadlockThreshold: deadlockT}
}

var stateImportanceBase = map[fleet.AgentState]int{
	fleet.ToDropoff:  1000,
	fleet.ToPickup:   500,
	fleet.HOME:       100,
	fleet.Evacuating: 50,
	fleet.IDLE:       0,
}

// Importance computes the agent importance score used to pick who yields
// and who gets sacrificed when resolving a deadlock group.
func Importance(agent *fleet.Agent) int {
	score := stateImportanceBase[agent.State]
	if agent.State == fleet.ToDropoff {
		pathBonus := 500
		if len(agent.Path) < 500 {
			pathBonus = 500 - len(agent.Path)
		}
		score += pathBonus
	}
	score += agent.Momentum * 20
	score += agent.WaitCount * 10
	return score
}

// nextCellOf returns the cell the agent intends to occupy next, or its
// current position if it has no path (i.e. it occupies its own cell
// indefinitely).
func nextCellOf(a *fleet.Agent) grid.Cell {
	if len(a.Path) > 0 {
		return a.Path[0]
	}
	return a.Pos
}

// occupantOf returns the agent currently standing on cell, if any.
func occupantOf(f *fleet.Fleet, cell grid.Cell) (*fleet.Agent, bool) {
	for _, a := range f.Agents {
		if a.Pos == cell {
			return a, true
		}
	}
	return nil, false
}

// traceWaitChain follows "who occupies my next cell" starting from
// start, up to maxTraceDepth hops. It returns the chain of agent ids
// visited and true if the chain cycles back on itself (a deadlock
// group).
func traceWaitChain(f *fleet.Fleet, start fleet.AgentID) ([]fleet.AgentID, bool) {
	chain := []fleet.AgentID{start}
	seen := map[fleet.AgentID]struct{}{start: {}}

	cur := f.Agent(start)
	for depth := 0; depth < maxTraceDepth; depth++ {
		if cur == nil {
			return chain, false
		}
		next := nextCellOf(cur)
		occupant, ok := occupantOf(f, next)
		if !ok || occupant.ID == cur.ID {
			return chain, false
		}
		if _, revisited := seen[occupant.ID]; revisited {
			return chain, true
		}
		chain = append(chain, occupant.ID)
		seen[occupant.ID] = struct{}{}
		cur = occupant
	}
	return chain, false
}

// DetectGroups scans agents with wait_count > DecisionWaitThreshold for
// pair deadlocks (A wants B's cell, B wants A's) and cycle deadlocks (a
// wait-chain that revisits itself). Returns the distinct groups found.
func (r *Resolver) DetectGroups(f *fleet.Fleet) [][]fleet.AgentID {
	var groups [][]fleet.AgentID
	inGroup := map[fleet.AgentID]struct{}{}

	ids := f.AgentIDs()
	for _, id := range ids {
		a := f.Agent(id)
		if a.WaitCount <= r.DecisionWaitThreshold {
			continue
		}
		if _, already := inGroup[id]; already {
			continue
		}

		nextA := nextCellOf(a)
		if occupant, ok := occupantOf(f, nextA); ok && occupant.ID != a.ID {
			if nextCellOf(occupant) == a.Pos {
				group := []fleet.AgentID{a.ID, occupant.ID}
				groups = append(groups, group)
				inGroup[a.ID] = struct{}{}
				inGroup[occupant.ID] = struct{}{}
				continue
			}
		}

		if chain, cyclic := traceWaitChain(f, id); cyclic {
			groups = append(groups, chain)
			for _, m := range chain {
				inGroup[m] = struct{}{}
			}
		}
	}
	return groups
}

// ResolveGroup picks the least-important member of group and gives it a
// single-step emergency move, clearing its failed_paths first if no
// neighbor is otherwise free.
func (r *Resolver) ResolveGroup(f *fleet.Fleet, group []fleet.AgentID) bool {
	var weakest *fleet.Agent
	weakestScore := 0
	for _, id := range group {
		a := f.Agent(id)
		if a == nil {
			continue
		}
		score := Importance(a)
		if weakest == nil || score < weakestScore {
			weakest = a
			weakestScore = score
		}
	}
	if weakest == nil {
		return false
	}

	pos, ok := r.emergencyMove(f, weakest, false)
	if !ok {
		weakest.FailedPaths = make(map[grid.Cell]struct{})
		pos, ok = r.emergencyMove(f, weakest, true)
	}
	if !ok {
		return false
	}

	weakest.Path = []grid.Cell{pos}
	weakest.DecisionMode = fleet.Forced
	weakest.WaitCount = 0
	return true
}

// emergencyMove returns a free, in-bounds, non-obstacle, unoccupied
// neighbor of agent's position, skipping failed_paths unless
// ignoreFailed is set. Candidate order is rotated by the agent's id so
// repeated emergencies across agents don't all prefer the same
// direction first, without breaking the simulation's per-tick
// determinism.
func (r *Resolver) emergencyMove(f *fleet.Fleet, agent *fleet.Agent, ignoreFailed bool) (grid.Cell, bool) {
	neighbors := grid.Orthogonal4(agent.Pos)
	n4 := len(neighbors)
	offset := int(agent.ID) % n4
	for i := 0; i < n4; i++ {
		idx := (i + offset) % n4
		n := neighbors[idx]
		if !r.g.IsFree(n) {
			continue
		}
		if !ignoreFailed {
			if _, failed := agent.FailedPaths[n]; failed {
				continue
			}
		}
		if _, occupied := occupantOf(f, n); occupied {
			continue
		}
		return n, true
	}
	return grid.Cell{}, false
}
