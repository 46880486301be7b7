// Package penalty implements a dynamic congestion/penalty layer over the
// grid: cells accumulate decaying traffic and conflict history plus
// time-boxed yield/priority zone flags. It supplements the task manager's
// traffic-density signal; it never feeds the pathfinder's step_cost
// formula directly.
package penalty

import (
	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
)

const (
	trafficWeight   = 0.05
	conflictWeight  = 0.1
	maxTrafficPart  = 2.0
	maxConflictPart = 3.0
	maxTotal        = 5.0
	decayAfterTicks = 50
	decayFactor     = 0.95
)

type cellState struct {
	basePenalty     float64
	trafficHistory  int
	conflictHistory int
	lastUpdated     int
	yieldZone       bool
	yieldExpire     int
	priorityZone    bool
	priorityExpire  int
}

// Map tracks per-cell traffic/conflict history and temporary zone flags
// across ticks.
type Map struct {
	rows, cols int
	cells      map[grid.Cell]*cellState
}

// New returns a penalty map sized to rows x cols, all cells starting at
// zero penalty.
func New(rows, cols int) *Map {
	m := &Map{rows: rows, cols: cols, cells: make(map[grid.Cell]*cellState, rows*cols)}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.cells[grid.Cell{Row: r, Col: c}] = &cellState{}
		}
	}
	return m
}

func (m *Map) cell(pos grid.Cell) *cellState {
	return m.cells[pos]
}

// UpdateTraffic records a traffic event at pos at the given tick.
func (m *Map) UpdateTraffic(pos grid.Cell, tick int, weight float64) {
	cs := m.cell(pos)
	if cs == nil {
		return
	}
	cs.trafficHistory++
	cs.basePenalty += weight * trafficWeight
	if cs.basePenalty > maxTrafficPart {
		cs.basePenalty = maxTrafficPart
	}
	cs.lastUpdated = tick
}

// UpdateConflict records a conflict event (e.g. a yield or blocked move)
// at pos at the given tick.
func (m *Map) UpdateConflict(pos grid.Cell, tick int, severity float64) {
	cs := m.cell(pos)
	if cs == nil {
		return
	}
	cs.conflictHistory++
	cs.basePenalty += severity * conflictWeight
	if cs.basePenalty > maxConflictPart {
		cs.basePenalty = maxConflictPart
	}
	cs.lastUpdated = tick
}

// MarkYieldZone flags pos as a temporary yield zone for duration ticks.
func (m *Map) MarkYieldZone(pos grid.Cell, duration int) {
	if cs := m.cell(pos); cs != nil {
		cs.yieldZone = true
		cs.yieldExpire = duration
	}
}

// MarkPriorityZone flags pos as a temporary priority zone for duration
// ticks.
func (m *Map) MarkPriorityZone(pos grid.Cell, duration int) {
	if cs := m.cell(pos); cs != nil {
		cs.priorityZone = true
		cs.priorityExpire = duration
	}
}

// GetPenalty returns the effective penalty at pos for an agent in the
// given state, capped at maxTotal.
func (m *Map) GetPenalty(pos grid.Cell, state fleet.AgentState) float64 {
	cs := m.cell(pos)
	if cs == nil {
		return 0
	}
	p := cs.basePenalty
	switch {
	case state == fleet.ToDropoff && cs.yieldZone:
		p += 2.0
	case state == fleet.IDLE && cs.priorityZone:
		p += 1.5
	}
	if p > maxTotal {
		p = maxTotal
	}
	return p
}

// StepUpdate decays stale penalties and expires zone flags. Call once
// per tick.
func (m *Map) StepUpdate(currentTick int) {
	for _, cs := range m.cells {
		if currentTick-cs.lastUpdated > decayAfterTicks {
			cs.basePenalty *= decayFactor
		}
		if cs.yieldZone {
			cs.yieldExpire--
			if cs.yieldExpire <= 0 {
				cs.yieldZone = false
			}
		}
		if cs.priorityZone {
			cs.priorityExpire--
			if cs.priorityExpire <= 0 {
				cs.priorityZone = false
			}
		}
	}
}

// GetCongestionMap returns a smoothed local-density estimate per cell,
// summing neighbor traffic/conflict history within radius, weighted by
// inverse Chebyshev distance.
func (m *Map) GetCongestionMap(radius int) map[grid.Cell]float64 {
	out := make(map[grid.Cell]float64, len(m.cells))
	for pos := range m.cells {
		density := 0.0
		for dr := -radius; dr <= radius; dr++ {
			for dc := -radius; dc <= radius; dc++ {
				n := grid.Cell{Row: pos.Row + dr, Col: pos.Col + dc}
				cs, ok := m.cells[n]
				if !ok {
					continue
				}
				dist := maxAbs(dr, dc)
				weight := 1.0 / float64(dist+1)
				density += (float64(cs.trafficHistory)*0.1 + float64(cs.conflictHistory)*0.2) * weight
			}
		}
		out[pos] = density
	}
	return out
}

func maxAbs(a, b int) int {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	if a > b {
		return a
	}
	return b
}
