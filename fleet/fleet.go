// Package fleet owns the mutable heart of the simulation: agents and
// packages. Every other package borrows a *Fleet rather than holding its
// own copy of the agent list, per the single-owning-container design.
package fleet

import "github.com/gridfleet/gridfleet/grid"

// AgentID and PackageID are positive, unique identifiers.
type AgentID int
type PackageID int

// AgentState is the agent's coarse FSM state.
type AgentState int

const (
	IDLE AgentState = iota
	HOME
	ToPickup
	ToDropoff
	Evacuating
)

func (s AgentState) String() string {
	switch s {
	case IDLE:
		return "IDLE"
	case HOME:
		return "HOME"
	case ToPickup:
		return "TO_PICKUP"
	case ToDropoff:
		return "TO_DROPOFF"
	case Evacuating:
		return "EVACUATING"
	default:
		return "UNKNOWN"
	}
}

// DecisionMode reflects the deadlock resolver's influence on the agent
// this tick.
type DecisionMode int

const (
	Normal DecisionMode = iota
	Yielding
	Retreat
	Forced
)

func (m DecisionMode) String() string {
	switch m {
	case Normal:
		return "NORMAL"
	case Yielding:
		return "YIELDING"
	case Retreat:
		return "RETREAT"
	case Forced:
		return "FORCED"
	default:
		return "UNKNOWN"
	}
}

// PackageStatus tracks a package's lifecycle.
type PackageStatus int

const (
	Waiting PackageStatus = iota
	Picked
	Delivered
)

func (s PackageStatus) String() string {
	switch s {
	case Waiting:
		return "WAITING"
	case Picked:
		return "PICKED"
	case Delivered:
		return "DELIVERED"
	default:
		return "UNKNOWN"
	}
}

// Ring10 is a fixed-capacity ring buffer of the last 10 positions visited,
// used for oscillation detection.
type Ring10 struct {
	buf   [10]grid.Cell
	len   int
	start int
}

// Push appends c, evicting the oldest entry once full.
func (r *Ring10) Push(c grid.Cell) {
	idx := (r.start + r.len) % len(r.buf)
	r.buf[idx] = c
	if r.len < len(r.buf) {
		r.len++
	} else {
		r.start = (r.start + 1) % len(r.buf)
	}
}

// Len returns the number of entries currently stored (<= 10).
func (r *Ring10) Len() int { return r.len }

// Last returns the n most recently pushed cells, oldest first. If fewer
// than n entries exist, it returns what is available.
func (r *Ring10) Last(n int) []grid.Cell {
	if n > r.len {
		n = r.len
	}
	out := make([]grid.Cell, 0, n)
	for i := r.len - n; i < r.len; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// UniqueCount returns the number of distinct cells among the last n
// pushes.
func (r *Ring10) UniqueCount(n int) int {
	seen := make(map[grid.Cell]struct{}, n)
	for _, c := range r.Last(n) {
		seen[c] = struct{}{}
	}
	return len(seen)
}

// Clear empties the ring.
func (r *Ring10) Clear() { *r = Ring10{} }

// Agent is a single record with named fields — never a map of named
// properties — owned exclusively by a Fleet.
type Agent struct {
	ID   AgentID
	Name string
	Home grid.Cell
	Pos  grid.Cell

	State   AgentState
	Package *PackageID

	Path []grid.Cell

	WaitCount  int
	Momentum   int
	LastDir    grid.Dir
	TotalTurns int

	DecisionMode  DecisionMode
	YieldTo       *AgentID
	EvacTarget    *grid.Cell
	EvacStartTick int
	YieldStartTick int

	StuckAt    *grid.Cell
	StuckCount int

	FailedPaths     map[grid.Cell]struct{}
	PositionHistory Ring10
}

// Package is a pickup/dropoff task.
type Package struct {
	ID         PackageID
	Name       string
	Pickup     grid.Cell
	Dropoff    grid.Cell
	Status     PackageStatus
	AssignedTo *AgentID
}

// Fleet is the single owning container for agents and packages, indexed
// by id. Subsystems are handed a *Fleet and operate on ids, never on a
// private copy of the slice.
type Fleet struct {
	Agents   map[AgentID]*Agent
	Packages map[PackageID]*Package

	agentOrder   []AgentID
	packageOrder []PackageID
}

// New returns an empty Fleet.
func New() *Fleet {
	return &Fleet{
		Agents:   make(map[AgentID]*Agent),
		Packages: make(map[PackageID]*Package),
	}
}

// AddAgent registers a new agent, preserving insertion order for
// deterministic iteration.
func (f *Fleet) AddAgent(a *Agent) {
	if a.FailedPaths == nil {
		a.FailedPaths = make(map[grid.Cell]struct{})
	}
	f.Agents[a.ID] = a
	f.agentOrder = append(f.agentOrder, a.ID)
}

// AddPackage registers a new package, preserving insertion order.
func (f *Fleet) AddPackage(p *Package) {
	f.Packages[p.ID] = p
	f.packageOrder = append(f.packageOrder, p.ID)
}

// AgentIDs returns agent ids in insertion (load) order.
func (f *Fleet) AgentIDs() []AgentID {
	out := make([]AgentID, len(f.agentOrder))
	copy(out, f.agentOrder)
	return out
}

// PackageIDs returns package ids in insertion order.
func (f *Fleet) PackageIDs() []PackageID {
	out := make([]PackageID, len(f.packageOrder))
	copy(out, f.packageOrder)
	return out
}

// Agent returns the agent for id, or nil if unknown.
func (f *Fleet) Agent(id AgentID) *Agent { return f.Agents[id] }

// Package returns the package for id, or nil if unknown.
func (f *Fleet) Package(id PackageID) *Package { return f.Packages[id] }

// OccupiedCells returns the set of cells currently held by agents other
// than `exclude` (pass 0 to exclude none).
func (f *Fleet) OccupiedCells(exclude AgentID) map[grid.Cell]struct{} {
	occ := make(map[grid.Cell]struct{}, len(f.Agents))
	for id, a := range f.Agents {
		if id == exclude {
			continue
		}
		occ[a.Pos] = struct{}{}
	}
	return occ
}

// LiveDropoffTargets returns the set of dropoff cells that currently
// belong to a package some agent is actively carrying (PICKED, owned),
// excluding the dropoff of the given agent's own package.
func (f *Fleet) LiveDropoffTargets(exclude AgentID) map[grid.Cell]struct{} {
	out := make(map[grid.Cell]struct{})
	for _, p := range f.Packages {
		if p.Status != Picked {
			continue
		}
		if p.AssignedTo != nil && *p.AssignedTo == exclude {
			continue
		}
		out[p.Dropoff] = struct{}{}
	}
	return out
}
