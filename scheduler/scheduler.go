// Package scheduler drives the per-tick main loop: maintenance, deadlock
// resolution, critical-path evacuation, decisive action, planning,
// arbitration, commit, and task transitions.
package scheduler

import (
	"log"
	"sort"

	"github.com/gridfleet/gridfleet/config"
	"github.com/gridfleet/gridfleet/corridor"
	"github.com/gridfleet/gridfleet/deadlock"
	"github.com/gridfleet/gridfleet/events"
	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
	"github.com/gridfleet/gridfleet/pathfinder"
	"github.com/gridfleet/gridfleet/penalty"
	"github.com/gridfleet/gridfleet/taskmanager"
)

// Scheduler owns one tick of simulation state transition. It borrows the
// fleet rather than owning its own copy, per the single-owning-container
// design — every subsystem it drives (Pathfinder, Resolver, Manager)
// receives the same *fleet.Fleet.
type Scheduler struct {
	f  *fleet.Fleet
	g  *grid.Grid
	cm *corridor.Map
	pf *pathfinder.Pathfinder
	tm *taskmanager.Manager
	dl *deadlock.Resolver
	pm *penalty.Map

	t    config.Tunables
	sink events.Sink
	log  *log.Logger

	tick int
}

// New builds a Scheduler. pm and sink may be nil (no congestion shaping,
// no event consumer).
func New(f *fleet.Fleet, g *grid.Grid, cm *corridor.Map, pf *pathfinder.Pathfinder, tm *taskmanager.Manager, dl *deadlock.Resolver, pm *penalty.Map, t config.Tunables, sink events.Sink, logger *log.Logger) *Scheduler {
	if sink == nil {
		sink = events.Multi{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{f: f, g: g, cm: cm, pf: pf, tm: tm, dl: dl, pm: pm, t: t, sink: sink, log: logger}
}

// Tick returns the current (last completed) tick number.
func (s *Scheduler) Tick() int { return s.tick }

// Done reports whether the simulation has reached its terminal
// condition: every package DELIVERED and every agent settled at home
// (IDLE or HOME, standing on its home cell).
func (s *Scheduler) Done() bool {
	for _, pid := range s.f.PackageIDs() {
		if s.f.Package(pid).Status != fleet.Delivered {
			return false
		}
	}
	for _, id := range s.f.AgentIDs() {
		a := s.f.Agent(id)
		if a.Pos != a.Home {
			return false
		}
		if a.State != fleet.IDLE && a.State != fleet.HOME {
			return false
		}
	}
	return true
}

// Step advances the simulation by exactly one tick, implementing the
// scheduler's ten-phase order.
func (s *Scheduler) Step() {
	s.tick++

	// 1. Advance clock, purge stale reservations.
	s.pf.UpdateTick(s.tick)
	if s.pm != nil {
		s.pm.StepUpdate(s.tick)
	}

	// 2. TaskManager maintenance.
	s.tm.FixRobotStates(s.f)
	if s.t.OrphanCheckInterval > 0 && s.tick%s.t.OrphanCheckInterval == 0 {
		s.tm.CleanupOrphanedAssignments(s.f)
	}
	if s.t.IdleRecheckInterval > 0 && s.tick%s.t.IdleRecheckInterval == 0 {
		s.tm.ReassignStuckPackages(s.f)
		s.tm.ForceIdleRobotsToWork(s.f)
	}

	// 3. Deadlock group detection and resolution.
	for _, group := range s.dl.DetectGroups(s.f) {
		if s.dl.ResolveGroup(s.f, group) {
			for _, id := range group {
				s.sink.Emit(events.Event{Kind: events.DeadlockResolved, AgentID: id, Tick: s.tick})
			}
		}
	}

	// 4. Timeouts and oscillation.
	s.applyTimeouts()

	// 5. Critical-path evacuation.
	s.applyCriticalPathEvac()

	// 6. Per-agent decisive action.
	s.applyDecisiveActions()

	// 7. Planning pass.
	planned := s.planningPass()

	// 8. Arbitration and commit.
	s.arbitrateAndCommit(planned)

	// 9. Task transitions happen inline during commit (see commitMove).
}

func (s *Scheduler) priorityOrder() []fleet.AgentID {
	ids := s.f.AgentIDs()
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := s.pf.GetPriority(s.f.Agent(ids[i])), s.pf.GetPriority(s.f.Agent(ids[j]))
		if pi != pj {
			return pi > pj
		}
		return ids[i] < ids[j]
	})
	return ids
}

func (s *Scheduler) applyTimeouts() {
	for _, id := range s.f.AgentIDs() {
		a := s.f.Agent(id)
		switch {
		case a.State == fleet.Evacuating && s.tick-a.EvacStartTick > s.t.EvacuatingTimeout:
			s.tm.ForceResetStuckState(s.f, a)
		case a.DecisionMode == fleet.Yielding && s.tick-a.YieldStartTick > s.t.YieldingTimeout:
			a.DecisionMode = fleet.Normal
			a.YieldTo = nil
		}
		a.PositionHistory.Push(a.Pos)
		if a.PositionHistory.Len() >= s.t.OscillationWindow &&
			a.PositionHistory.UniqueCount(s.t.OscillationWindow) <= s.t.OscillationUniqueCells {
			s.tm.ForceResetStuckState(s.f, a)
		}
	}
}

func (s *Scheduler) applyCriticalPathEvac() {
	for _, id := range s.f.AgentIDs() {
		a := s.f.Agent(id)
		if !deadlock.NeedsCriticalPathEvac(s.f, a) {
			continue
		}
		if spot, ok := s.dl.FindEvacuationSpot(s.f, a); ok {
			a.EvacTarget = &spot
			a.Path = []grid.Cell{spot}
			a.State = fleet.Evacuating
			a.EvacStartTick = s.tick
		}
	}
}

func (s *Scheduler) applyDecisiveActions() {
	for _, id := range s.f.AgentIDs() {
		a := s.f.Agent(id)
		if a.WaitCount < s.t.YieldThreshold {
			continue
		}
		d := s.dl.DecisiveAction(s.f, a)
		switch d.Action {
		case deadlock.YieldTo:
			a.DecisionMode = fleet.Yielding
			a.YieldStartTick = s.tick
			a.Path = []grid.Cell{*d.YieldTarget}
			s.sink.Emit(events.Event{Kind: events.Yield, AgentID: a.ID, From: a.Pos, To: *d.YieldTarget, Tick: s.tick})
		case deadlock.Repath:
			if len(a.Path) > 0 {
				if a.FailedPaths == nil {
					a.FailedPaths = make(map[grid.Cell]struct{})
				}
				a.FailedPaths[a.Path[0]] = struct{}{}
			}
			a.Path = nil
		case deadlock.RetreatAction:
			a.DecisionMode = fleet.Retreat
			a.Path = d.RetreatPath
			s.sink.Emit(events.Event{Kind: events.RetreatKind, AgentID: a.ID, From: a.Pos, Tick: s.tick})
		case deadlock.EmergencyAction:
			a.DecisionMode = fleet.Forced
			a.Path = []grid.Cell{*d.EmergencyPos}
			a.WaitCount = 0
			s.sink.Emit(events.Event{Kind: events.Emergency, AgentID: a.ID, From: a.Pos, To: *d.EmergencyPos, Tick: s.tick})
		case deadlock.PreemptOccupant:
			occupant := s.f.Agent(d.PreemptAgent)
			if occupant != nil {
				if spot, ok := s.dl.FindEvacuationSpot(s.f, occupant); ok {
					occupant.EvacTarget = &spot
					occupant.Path = []grid.Cell{spot}
					occupant.State = fleet.Evacuating
					occupant.EvacStartTick = s.tick
				}
			}
		}
	}
}

func (s *Scheduler) agentGoal(a *fleet.Agent) (grid.Cell, bool) {
	switch a.State {
	case fleet.ToPickup:
		if a.Package == nil {
			return grid.Cell{}, false
		}
		pkg := s.f.Package(*a.Package)
		if pkg == nil {
			return grid.Cell{}, false
		}
		return pkg.Pickup, true
	case fleet.ToDropoff:
		if a.Package == nil {
			return grid.Cell{}, false
		}
		pkg := s.f.Package(*a.Package)
		if pkg == nil {
			return grid.Cell{}, false
		}
		return pkg.Dropoff, true
	case fleet.Evacuating:
		if a.EvacTarget == nil {
			return grid.Cell{}, false
		}
		return *a.EvacTarget, true
	case fleet.HOME:
		return a.Home, true
	default:
		return grid.Cell{}, false
	}
}

func (s *Scheduler) planningPass() map[fleet.AgentID]grid.Cell {
	order := s.priorityOrder()
	claimed := map[grid.Cell]struct{}{}
	planned := make(map[fleet.AgentID]grid.Cell, len(order))

	for _, id := range order {
		a := s.f.Agent(id)
		if len(a.Path) == 0 && a.State != fleet.IDLE {
			if goal, ok := s.agentGoal(a); ok {
				blocked := s.tm.GetBlockedForRobot(s.f, a, claimed)
				for c := range a.FailedPaths {
					blocked[c] = struct{}{}
				}
				path := s.pf.FindPath(s.f, a, goal, blocked)
				if len(path) == 0 {
					minimal := s.f.OccupiedCells(a.ID)
					path = s.pf.FindPath(s.f, a, goal, minimal)
				}
				a.Path = path
			}
		}
		if len(a.Path) > 0 {
			planned[id] = a.Path[0]
			claimed[a.Path[0]] = struct{}{}
		} else {
			planned[id] = a.Pos
		}
	}
	return planned
}

func (s *Scheduler) arbitrateAndCommit(planned map[fleet.AgentID]grid.Cell) {
	order := s.priorityOrder()
	reservedThisTick := make(map[grid.Cell]struct{}, len(order))
	stationary := make(map[grid.Cell]fleet.AgentID)
	for _, id := range order {
		if planned[id] == s.f.Agent(id).Pos {
			stationary[s.f.Agent(id).Pos] = id
		}
	}

	for _, id := range order {
		a := s.f.Agent(id)
		next := planned[id]

		if next == a.Pos {
			a.WaitCount++
			a.Momentum = 0
			reservedThisTick[a.Pos] = struct{}{}
			continue
		}

		if !s.g.IsFree(next) {
			s.rejectMove(a, next)
			continue
		}
		if _, claimed := reservedThisTick[next]; claimed {
			s.rejectMove(a, next)
			continue
		}
		if occID, occ := stationary[next]; occ && occID != id {
			s.rejectMove(a, next)
			continue
		}
		if s.isSwap(id, a.Pos, next, planned) {
			s.rejectMove(a, next)
			continue
		}

		s.commitMove(a, next)
		reservedThisTick[next] = struct{}{}
	}
}

func (s *Scheduler) rejectMove(a *fleet.Agent, target grid.Cell) {
	a.WaitCount++
	a.Momentum = 0
	if s.pm != nil {
		s.pm.UpdateConflict(target, s.tick, 1.0)
	}
	s.sink.Emit(events.Event{Kind: events.Blocked, AgentID: a.ID, From: a.Pos, To: target, Tick: s.tick})
}

func (s *Scheduler) isSwap(id fleet.AgentID, pos, next grid.Cell, planned map[fleet.AgentID]grid.Cell) bool {
	for oid, onext := range planned {
		if oid == id {
			continue
		}
		other := s.f.Agent(oid)
		if other != nil && onext == pos && next == other.Pos {
			return true
		}
	}
	return false
}

func (s *Scheduler) commitMove(a *fleet.Agent, next grid.Cell) {
	from := a.Pos
	dir := grid.Direction(from, next)

	if grid.IsTurn(a.LastDir, dir) {
		a.TotalTurns++
		a.Momentum = 0
	} else if a.Momentum < 5 {
		a.Momentum++
	}
	a.LastDir = dir
	a.Pos = next
	if len(a.Path) > 0 {
		a.Path = a.Path[1:]
	}
	if s.pm != nil {
		s.pm.UpdateTraffic(next, s.tick, 1.0)
	}
	a.WaitCount = 0
	if a.DecisionMode != fleet.Forced || a.State != fleet.Evacuating {
		a.DecisionMode = fleet.Normal
	}

	s.sink.Emit(events.Event{Kind: events.Move, AgentID: a.ID, From: from, To: next, Tick: s.tick})
	s.settleTaskTransition(a)
}

func (s *Scheduler) settleTaskTransition(a *fleet.Agent) {
	switch {
	case a.State == fleet.ToPickup && a.Package != nil:
		pkg := s.f.Package(*a.Package)
		if pkg != nil && pkg.Pickup == a.Pos {
			pkg.Status = fleet.Picked
			a.State = fleet.ToDropoff
			a.Path = nil
			s.sink.Emit(events.Event{Kind: events.Pickup, AgentID: a.ID, To: a.Pos, Tick: s.tick})
		}
	case a.State == fleet.ToDropoff && a.Package != nil:
		pkg := s.f.Package(*a.Package)
		if pkg != nil && pkg.Dropoff == a.Pos {
			pkg.Status = fleet.Delivered
			pkg.AssignedTo = nil
			a.Package = nil
			a.State = fleet.HOME
			a.Path = nil
			s.pf.ClearAgentReservations(a.ID)
			s.sink.Emit(events.Event{Kind: events.Dropoff, AgentID: a.ID, To: a.Pos, Tick: s.tick})
		}
	case a.State == fleet.HOME && a.Pos == a.Home:
		a.State = fleet.IDLE
	case a.State == fleet.Evacuating && a.EvacTarget != nil && a.Pos == *a.EvacTarget:
		a.State = fleet.IDLE
		a.EvacTarget = nil
	}
}
