// Package reservation implements the (cell, tick) -> agent booking table
// shared by the pathfinder and the tick arbitrator.
package reservation

import (
	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
)

// TimeHorizon is how many extra ticks a path's terminal cell is held
// reserved after the agent arrives, modeling dwell time at the goal.
const TimeHorizon = 20

type booking struct {
	cell grid.Cell
	tick int
}

// Table is the reservation table: reservations[tick][cell] = agent, plus
// a by-agent index for O(1) clear.
type Table struct {
	reservations map[int]map[grid.Cell]fleet.AgentID
	byAgent      map[fleet.AgentID][]booking
}

// New returns an empty reservation table.
func New() *Table {
	return &Table{
		reservations: make(map[int]map[grid.Cell]fleet.AgentID),
		byAgent:      make(map[fleet.AgentID][]booking),
	}
}

// Reserve books cell at tick for agent, overwriting any existing booking
// at that (cell, tick).
func (t *Table) Reserve(agent fleet.AgentID, cell grid.Cell, tick int) {
	byCell, ok := t.reservations[tick]
	if !ok {
		byCell = make(map[grid.Cell]fleet.AgentID)
		t.reservations[tick] = byCell
	}
	byCell[cell] = agent
	t.byAgent[agent] = append(t.byAgent[agent], booking{cell: cell, tick: tick})
}

// ReservePath clears agent's existing bookings, then books path[i] at
// startTick+i, and additionally holds path's final cell for TimeHorizon
// further ticks to model dwell.
func (t *Table) ReservePath(agent fleet.AgentID, path []grid.Cell, startTick int) {
	t.ClearAgent(agent)
	if len(path) == 0 {
		return
	}
	for i, c := range path {
		t.Reserve(agent, c, startTick+i)
	}
	last := path[len(path)-1]
	lastTick := startTick + len(path) - 1
	for i := 1; i <= TimeHorizon; i++ {
		t.Reserve(agent, last, lastTick+i)
	}
}

// IsReserved reports whether cell is booked at tick by some agent other
// than exclude.
func (t *Table) IsReserved(cell grid.Cell, tick int, exclude fleet.AgentID) bool {
	byCell, ok := t.reservations[tick]
	if !ok {
		return false
	}
	holder, ok := byCell[cell]
	if !ok {
		return false
	}
	return holder != exclude
}

// GetReserver returns the agent holding cell at tick, if any.
func (t *Table) GetReserver(cell grid.Cell, tick int) (fleet.AgentID, bool) {
	byCell, ok := t.reservations[tick]
	if !ok {
		return 0, false
	}
	holder, ok := byCell[cell]
	return holder, ok
}

// ClearAgent erases every booking made by agent.
func (t *Table) ClearAgent(agent fleet.AgentID) {
	for _, b := range t.byAgent[agent] {
		if byCell, ok := t.reservations[b.tick]; ok {
			if holder, ok := byCell[b.cell]; ok && holder == agent {
				delete(byCell, b.cell)
				if len(byCell) == 0 {
					delete(t.reservations, b.tick)
				}
			}
		}
	}
	delete(t.byAgent, agent)
}

// ClearBefore purges all bookings with tick < before. Call once per tick.
func (t *Table) ClearBefore(before int) {
	for tick := range t.reservations {
		if tick < before {
			delete(t.reservations, tick)
		}
	}
	for agent, bookings := range t.byAgent {
		kept := bookings[:0]
		for _, b := range bookings {
			if b.tick >= before {
				kept = append(kept, b)
			}
		}
		if len(kept) == 0 {
			delete(t.byAgent, agent)
		} else {
			t.byAgent[agent] = kept
		}
	}
}

// WillSwap reports whether moving agent from current to next at tick
// would swap positions with another agent — i.e. some other agent holds
// `next` at `tick` and holds `current` at `tick+1`.
func (t *Table) WillSwap(agent fleet.AgentID, current, next grid.Cell, tick int) bool {
	occupantNow, ok := t.GetReserver(next, tick)
	if !ok || occupantNow == agent {
		return false
	}
	occupantNext, ok := t.GetReserver(current, tick+1)
	if !ok {
		return false
	}
	return occupantNext == occupantNow
}
