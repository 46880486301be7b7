// Package taskmanager assigns WAITING packages to idle agents, reassigns
// work away from stuck owners, and keeps agent FSM state consistent with
// what each agent is actually carrying.
package taskmanager

import (
	"log"
	"sort"

	"github.com/gridfleet/gridfleet/config"
	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
	"github.com/gridfleet/gridfleet/pathfinder"
	"github.com/gridfleet/gridfleet/penalty"
)

// Manager wires task assignment to the fleet, grid, and pathfinder it
// needs to compute costs and replan.
type Manager struct {
	g  *grid.Grid
	pf *pathfinder.Pathfinder
	t  config.Tunables

	log *log.Logger
	pm  *penalty.Map
}

// New builds a Manager. logger may be nil, in which case log.Default is
// used, matching the rest of the repository's logging convention.
func New(g *grid.Grid, pf *pathfinder.Pathfinder, t config.Tunables, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{g: g, pf: pf, t: t, log: logger}
}

// SetPenaltyMap wires an optional congestion/penalty layer into package
// assignment cost. A nil map (the default) leaves RequestPackage's cost
// formula exactly as spec'd.
func (m *Manager) SetPenaltyMap(pm *penalty.Map) { m.pm = pm }

// TrafficDensity sums 10/dist=0, 5/dist for dist<=2, 2/dist for dist<=4
// over every other agent's distance to pos. The penalty map's congestion
// signal is not included here; candidateCost adds it separately.
func TrafficDensity(f *fleet.Fleet, pos grid.Cell, self fleet.AgentID) float64 {
	density := 0.0
	for _, id := range f.AgentIDs() {
		if id == self {
			continue
		}
		a := f.Agent(id)
		dist := grid.Manhattan(pos, a.Pos)
		switch {
		case dist == 0:
			density += 10
		case dist <= 2:
			density += 5 / float64(dist)
		case dist <= 4:
			density += 2 / float64(dist)
		}
	}
	return density
}

// candidateCost scores a WAITING package for a requesting agent; lower is
// better. When a penalty map is wired in, its decaying congestion signal
// for the pickup cell layers onto the traffic term; the base
// traffic-density formula itself is untouched.
func (m *Manager) candidateCost(f *fleet.Fleet, agent *fleet.Agent, pkg *fleet.Package) float64 {
	pickupDist := grid.Manhattan(agent.Pos, pkg.Pickup)
	dropoffDist := grid.Manhattan(pkg.Pickup, pkg.Dropoff)
	traffic := TrafficDensity(f, pkg.Pickup, agent.ID)
	if m.pm != nil {
		traffic += m.pm.GetPenalty(pkg.Pickup, agent.State)
	}

	competing := 0
	for _, id := range f.AgentIDs() {
		if id == agent.ID {
			continue
		}
		other := f.Agent(id)
		if other.Package == nil {
			continue
		}
		if grid.Manhattan(other.Pos, pkg.Pickup) < pickupDist {
			competing++
		}
	}

	return float64(pickupDist)*1.0 + float64(dropoffDist)*0.2 + traffic*1.5 + float64(competing)*3.0
}

// RequestPackage assigns agent the WAITING, unassigned package that
// minimizes the spec's weighted cost formula, marking it assigned. It
// returns the chosen package, or nil if none is available.
func (m *Manager) RequestPackage(f *fleet.Fleet, agent *fleet.Agent) *fleet.Package {
	type candidate struct {
		cost float64
		pid  fleet.PackageID
	}
	var candidates []candidate
	for _, pid := range f.PackageIDs() {
		pkg := f.Package(pid)
		if pkg.Status != fleet.Waiting || pkg.AssignedTo != nil {
			continue
		}
		cost := m.candidateCost(f, agent, pkg)
		if m.g.IsNarrowPassage(pkg.Pickup) {
			cost += 2.0
		}
		candidates = append(candidates, candidate{cost, pid})
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].cost < candidates[j].cost })

	best := candidates[0]
	pkg := f.Package(best.pid)
	pkg.AssignedTo = &agent.ID
	return pkg
}

// DetectOscillation reports whether agent's last OscillationWindow
// recorded positions cover OscillationUniqueCells or fewer distinct cells.
// An agent that stays on one cell for that many recordings also counts.
func (m *Manager) DetectOscillation(agent *fleet.Agent) bool {
	if agent.PositionHistory.Len() < m.t.OscillationWindow {
		return false
	}
	return agent.PositionHistory.UniqueCount(m.t.OscillationWindow) <= m.t.OscillationUniqueCells
}

// GetBlockedForRobot returns the set of cells agent must treat as
// impassable this planning pass: every other agent's current position,
// any externally reserved cells, and every other live package's dropoff
// (so an agent never cuts through a dropoff it doesn't own). Obstacles
// are not included in the set.
func (m *Manager) GetBlockedForRobot(f *fleet.Fleet, agent *fleet.Agent, reserved map[grid.Cell]struct{}) map[grid.Cell]struct{} {
	blocked := make(map[grid.Cell]struct{})
	for _, id := range f.AgentIDs() {
		if id == agent.ID {
			continue
		}
		blocked[f.Agent(id).Pos] = struct{}{}
	}
	for c := range reserved {
		blocked[c] = struct{}{}
	}
	delete(blocked, agent.Pos)

	var myDropoff *grid.Cell
	if agent.Package != nil && agent.State == fleet.ToDropoff {
		if pkg := f.Package(*agent.Package); pkg != nil {
			d := pkg.Dropoff
			myDropoff = &d
		}
	}
	for _, pid := range f.PackageIDs() {
		pkg := f.Package(pid)
		if pkg.Status != fleet.Picked {
			continue
		}
		if myDropoff != nil && pkg.Dropoff == *myDropoff {
			continue
		}
		blocked[pkg.Dropoff] = struct{}{}
	}
	return blocked
}

// CleanupOrphanedAssignments clears a WAITING package's assignment if its
// assigned agent is gone or no longer actually working it.
func (m *Manager) CleanupOrphanedAssignments(f *fleet.Fleet) {
	for _, pid := range f.PackageIDs() {
		pkg := f.Package(pid)
		if pkg.Status != fleet.Waiting || pkg.AssignedTo == nil {
			continue
		}
		owner := f.Agent(*pkg.AssignedTo)
		if owner == nil {
			pkg.AssignedTo = nil
			continue
		}
		working := owner.Package != nil && *owner.Package == pid &&
			(owner.State == fleet.ToPickup || owner.State == fleet.ToDropoff)
		if !working {
			pkg.AssignedTo = nil
		}
	}
}

// ReassignStuckPackages moves a WAITING package off an owner whose
// wait_count exceeds ReassignThreshold, onto the nearest free agent that
// is not itself near the yield threshold.
func (m *Manager) ReassignStuckPackages(f *fleet.Fleet) {
	for _, pid := range f.PackageIDs() {
		pkg := f.Package(pid)
		if pkg.Status != fleet.Waiting || pkg.AssignedTo == nil {
			continue
		}
		owner := f.Agent(*pkg.AssignedTo)
		if owner == nil || owner.WaitCount <= m.t.ReassignThreshold {
			continue
		}

		var best *fleet.Agent
		bestDist := grid.Manhattan(owner.Pos, pkg.Pickup)
		for _, id := range f.AgentIDs() {
			if id == owner.ID {
				continue
			}
			rb := f.Agent(id)
			if rb.State != fleet.IDLE && rb.State != fleet.HOME {
				continue
			}
			if rb.WaitCount > m.t.YieldThreshold {
				continue
			}
			dist := grid.Manhattan(rb.Pos, pkg.Pickup)
			if dist < bestDist {
				bestDist = dist
				best = rb
			}
		}
		if best == nil {
			continue
		}

		owner.Package = nil
		owner.State = fleet.IDLE
		owner.Path = nil
		owner.FailedPaths = make(map[grid.Cell]struct{})

		pkg.AssignedTo = &best.ID
		best.Package = &pid
		blocked := m.GetBlockedForRobot(f, best, nil)
		best.Path = m.pf.FindPath(f, best, pkg.Pickup, blocked)
		best.State = fleet.ToPickup
		best.DecisionMode = fleet.Normal
		best.FailedPaths = make(map[grid.Cell]struct{})
		best.WaitCount = 0
	}
}

// ForceIdleRobotsToWork assigns the nearest WAITING, unassigned package to
// every IDLE agent still carrying nothing.
func (m *Manager) ForceIdleRobotsToWork(f *fleet.Fleet) {
	for _, id := range f.AgentIDs() {
		rb := f.Agent(id)
		if rb.State != fleet.IDLE || rb.Package != nil {
			continue
		}
		rb.FailedPaths = make(map[grid.Cell]struct{})

		var bestPID *fleet.PackageID
		bestCost := -1
		for _, pid := range f.PackageIDs() {
			pkg := f.Package(pid)
			if pkg.Status != fleet.Waiting || pkg.AssignedTo != nil {
				continue
			}
			dist := grid.Manhattan(rb.Pos, pkg.Pickup)
			if bestPID == nil || dist < bestCost {
				cp := pid
				bestPID = &cp
				bestCost = dist
			}
		}
		if bestPID == nil {
			continue
		}

		pkg := f.Package(*bestPID)
		pkg.AssignedTo = &rb.ID
		rb.Package = bestPID
		blocked := m.GetBlockedForRobot(f, rb, nil)
		rb.Path = m.pf.FindPath(f, rb, pkg.Pickup, blocked)
		rb.State = fleet.ToPickup
		rb.DecisionMode = fleet.Normal
		rb.FailedPaths = make(map[grid.Cell]struct{})
		rb.WaitCount = 0
	}
}

// FixRobotStates repairs agents whose FSM state drifted out of sync with
// what they're carrying: an agent holding a PICKED package must be
// TO_DROPOFF, one holding a WAITING (just-assigned) package must be
// TO_PICKUP.
func (m *Manager) FixRobotStates(f *fleet.Fleet) {
	for _, id := range f.AgentIDs() {
		rb := f.Agent(id)
		if rb.Package == nil {
			continue
		}
		pkg := f.Package(*rb.Package)
		if pkg == nil {
			continue
		}
		switch {
		case pkg.Status == fleet.Picked && rb.State == fleet.IDLE:
			m.log.Printf("[FIX] %s has package %s but was IDLE, setting to TO_DROPOFF", rb.Name, pkg.Name)
			rb.State = fleet.ToDropoff
			rb.FailedPaths = make(map[grid.Cell]struct{})
			blocked := m.GetBlockedForRobot(f, rb, nil)
			rb.Path = m.pf.FindPath(f, rb, pkg.Dropoff, blocked)
			rb.WaitCount = 0
		case pkg.Status == fleet.Waiting && rb.State == fleet.IDLE:
			m.log.Printf("[FIX] %s assigned %s but was IDLE, setting to TO_PICKUP", rb.Name, pkg.Name)
			rb.State = fleet.ToPickup
			rb.FailedPaths = make(map[grid.Cell]struct{})
			blocked := m.GetBlockedForRobot(f, rb, nil)
			rb.Path = m.pf.FindPath(f, rb, pkg.Pickup, blocked)
			rb.WaitCount = 0
		}
	}
}

// ForceResetStuckState hard-resets an agent that the deadlock ladder
// could not free, returning it to IDLE and releasing any still-WAITING
// package it held (a PICKED package stays with the agent — dropping it
// mid-carry would strand the package off-grid).
func (m *Manager) ForceResetStuckState(f *fleet.Fleet, agent *fleet.Agent) {
	m.log.Printf("[FORCE RESET] %s stuck in %s/%s - resetting to IDLE", agent.Name, agent.State, agent.DecisionMode)

	agent.State = fleet.IDLE
	agent.DecisionMode = fleet.Normal
	agent.Path = nil
	agent.EvacTarget = nil
	agent.YieldTo = nil
	agent.WaitCount = 0
	agent.FailedPaths = make(map[grid.Cell]struct{})
	agent.PositionHistory.Clear()
	agent.EvacStartTick = 0
	agent.YieldStartTick = 0
	agent.Momentum = 0

	if agent.Package != nil {
		if pkg := f.Package(*agent.Package); pkg != nil && pkg.Status == fleet.Waiting {
			pkg.AssignedTo = nil
			agent.Package = nil
		}
	}
}
