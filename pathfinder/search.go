package pathfinder

import (
	"container/heap"

	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
)

// searchState identifies a node in the time-space search: a cell at a
// tick, having arrived moving in lastDir. Distinguishing by lastDir lets
// the turn penalty and momentum bonus apply correctly to successors.
type searchState struct {
	cell    grid.Cell
	tick    int
	lastDir grid.Dir
}

type node struct {
	state           searchState
	g               float64
	f               float64
	parent          *node
	consecutiveWait int
}

type openQueue []*node

func (q openQueue) Len() int            { return len(q) }
func (q openQueue) Less(i, j int) bool  { return q[i].f < q[j].f }
func (q openQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *openQueue) Push(x interface{}) { *q = append(*q, x.(*node)) }
func (q *openQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// admissible reports whether moving the agent from current to next at
// the given tick is allowed under the pathfinder's hard constraints
// (bounds, obstacles, blocked set, dropoff/pickup gating, reservations,
// edge-swap). It does not check WAIT admissibility, which has its own
// consecutive-count rule.
func (p *Pathfinder) admissible(
	f *fleet.Fleet,
	agent *fleet.Agent,
	goal grid.Cell,
	current, next grid.Cell,
	tick int,
	blocked map[grid.Cell]struct{},
	useReservations bool,
) bool {
	if !p.g.IsFree(next) {
		return false
	}
	if _, blockedCell := blocked[next]; blockedCell {
		return false
	}
	if next != goal {
		if !p.canEnterDropoff(f, agent, next) {
			return false
		}
		if !p.canEnterPickup(f, agent, next) {
			return false
		}
	}
	if useReservations {
		if p.res.IsReserved(next, tick+1, agent.ID) {
			return false
		}
		if p.res.WillSwap(agent.ID, current, next, tick) {
			return false
		}
	}
	return true
}

// canEnterDropoff mirrors can_enter_dropoff: a dropoff cell may only be
// entered by the agent actively delivering the package that targets it,
// or if that package is not presently "live" there (waiting or already
// delivered).
func (p *Pathfinder) canEnterDropoff(f *fleet.Fleet, agent *fleet.Agent, pos grid.Cell) bool {
	for _, pkg := range f.Packages {
		if pkg.Dropoff != pos {
			continue
		}
		if agent.Package != nil && *agent.Package == pkg.ID && agent.State == fleet.ToDropoff {
			return true
		}
		if pkg.Status == fleet.Delivered || pkg.Status == fleet.Waiting {
			return true
		}
		return false
	}
	return true
}

// canEnterPickup mirrors can_enter_pickup: a pickup cell with a WAITING
// package is reserved for the agent carrying that assignment.
func (p *Pathfinder) canEnterPickup(f *fleet.Fleet, agent *fleet.Agent, pos grid.Cell) bool {
	if agent.Package != nil {
		if pkg := f.Package(*agent.Package); pkg != nil && pkg.Pickup == pos && agent.State == fleet.ToPickup {
			return true
		}
	}
	for _, pkg := range f.Packages {
		if pkg.Pickup == pos && pkg.Status == fleet.Waiting {
			return false
		}
	}
	return true
}

// timeSpaceAStar searches (cell, tick, lastDir) space from agent.Pos to
// goal, starting at startTick, allowing WAIT actions up to
// MaxWaitActions consecutively. Returns nil if no path is found within
// TimeHorizon ticks.
func (p *Pathfinder) timeSpaceAStar(
	f *fleet.Fleet,
	agent *fleet.Agent,
	goal grid.Cell,
	startTick int,
	blocked map[grid.Cell]struct{},
) []grid.Cell {
	snap := p.snapshot(agent)
	goalDir := grid.Direction(agent.Pos, goal)

	start := &node{state: searchState{cell: agent.Pos, tick: startTick, lastDir: agent.LastDir}}
	start.f = float64(grid.Manhattan(agent.Pos, goal))

	open := &openQueue{start}
	heap.Init(open)
	best := map[searchState]float64{start.state: 0}

	maxTick := startTick + p.tunables.TimeHorizon

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if cur.state.cell == goal {
			return reconstructPath(cur)
		}
		if cur.state.tick > maxTick {
			continue
		}
		if g, ok := best[cur.state]; ok && cur.g > g {
			continue
		}

		for _, next := range grid.Orthogonal4(cur.state.cell) {
			dir := grid.Direction(cur.state.cell, next)
			if !p.admissible(f, agent, goal, cur.state.cell, next, cur.state.tick, blocked, true) {
				continue
			}
			bias := heuristicBias(dir, goalDir, snap.Momentum, cur.state.lastDir)
			cost := stepCost(p.tunables2(), p.g, p.cm, p.orc, snapWithDir(snap, cur.state.lastDir), cur.state.cell, next, dir)
			succ := &node{
				state:  searchState{cell: next, tick: cur.state.tick + 1, lastDir: dir},
				g:      cur.g + cost,
				parent: cur,
			}
			succ.f = succ.g + float64(grid.Manhattan(next, goal))*bias
			if g, ok := best[succ.state]; !ok || succ.g < g {
				best[succ.state] = succ.g
				heap.Push(open, succ)
			}
		}

		// WAIT: stay in place, advance time, subject to consecutive cap and
		// not being reserved against.
		if cur.consecutiveWait < p.tunables.MaxWaitActions &&
			!p.res.IsReserved(cur.state.cell, cur.state.tick+1, agent.ID) {
			succ := &node{
				state:           searchState{cell: cur.state.cell, tick: cur.state.tick + 1, lastDir: cur.state.lastDir},
				g:               cur.g + p.tunables.WaitCost,
				parent:          cur,
				consecutiveWait: cur.consecutiveWait + 1,
			}
			succ.f = succ.g + float64(grid.Manhattan(cur.state.cell, goal))
			if g, ok := best[succ.state]; !ok || succ.g < g {
				best[succ.state] = succ.g
				heap.Push(open, succ)
			}
		}
	}

	return nil
}

// fallbackAStar is a plain A* over cell space only — no time dimension,
// no reservations — used as a best-effort route when the time-space
// search fails to find anything.
func (p *Pathfinder) fallbackAStar(
	f *fleet.Fleet,
	agent *fleet.Agent,
	goal grid.Cell,
	blocked map[grid.Cell]struct{},
) []grid.Cell {
	snap := p.snapshot(agent)
	goalDir := grid.Direction(agent.Pos, goal)

	start := &node{state: searchState{cell: agent.Pos, lastDir: agent.LastDir}}
	start.f = float64(grid.Manhattan(agent.Pos, goal))

	open := &openQueue{start}
	heap.Init(open)
	best := map[grid.Cell]float64{agent.Pos: 0}
	visited := map[grid.Cell]struct{}{}

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if _, seen := visited[cur.state.cell]; seen {
			continue
		}
		visited[cur.state.cell] = struct{}{}

		if cur.state.cell == goal {
			return reconstructPath(cur)
		}

		for _, next := range grid.Orthogonal4(cur.state.cell) {
			dir := grid.Direction(cur.state.cell, next)
			if !p.admissible(f, agent, goal, cur.state.cell, next, cur.state.tick, blocked, false) {
				continue
			}
			bias := heuristicBias(dir, goalDir, snap.Momentum, cur.state.lastDir)
			cost := stepCost(p.tunables2(), p.g, p.cm, p.orc, snapWithDir(snap, cur.state.lastDir), cur.state.cell, next, dir)
			succG := cur.g + cost
			if g, ok := best[next]; ok && succG >= g {
				continue
			}
			best[next] = succG
			succ := &node{
				state:  searchState{cell: next, lastDir: dir},
				g:      succG,
				parent: cur,
			}
			succ.f = succ.g + float64(grid.Manhattan(next, goal))*bias
			heap.Push(open, succ)
		}
	}

	return nil
}

func reconstructPath(n *node) []grid.Cell {
	var cells []grid.Cell
	for cur := n; cur.parent != nil; cur = cur.parent {
		cells = append(cells, cur.state.cell)
	}
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	return cells
}

func (p *Pathfinder) snapshot(agent *fleet.Agent) agentSnapshot {
	return agentSnapshot{
		ID: agent.ID, State: agent.State, LastDir: agent.LastDir,
		Momentum: agent.Momentum, WaitCount: agent.WaitCount,
		Priority: p.GetPriority(agent),
	}
}

func snapWithDir(s agentSnapshot, dir grid.Dir) agentSnapshot {
	s.LastDir = dir
	return s
}

func (p *Pathfinder) tunables2() Tunables { return p.tunables }
