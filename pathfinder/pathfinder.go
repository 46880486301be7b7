// Package pathfinder implements the time-space A* search with
// reservation-aware collision avoidance, a plain-A* fallback, and an
// optional least-accessed route cache. This consolidates the original
// system's two divergent path-search implementations into one time-space
// search with a plain fallback, as directed by the design notes.
package pathfinder

import (
	"github.com/gridfleet/gridfleet/corridor"
	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
	"github.com/gridfleet/gridfleet/oracle"
	"github.com/gridfleet/gridfleet/reservation"
)

// statePriority mirrors the state-weighted base used by both the
// importance score (deadlock package) and the planning-order priority
// computed here; the two scores differ in accompanying terms and are
// kept as two separate, smaller formulas rather than unified into one,
// matching the spec's explicit separation of concerns between the
// pathfinder's planning order and the resolver's importance score.
var statePriority = map[fleet.AgentState]int{
	fleet.ToDropoff:  3000,
	fleet.ToPickup:   2000,
	fleet.Evacuating: 1500,
	fleet.HOME:       1000,
	fleet.IDLE:       0,
}

// Pathfinder wraps the time-space A* search together with the shared
// reservation table and an optional route cache.
type Pathfinder struct {
	g        *grid.Grid
	cm       *corridor.Map
	tunables Tunables
	res      *reservation.Table
	cache    *corridor.RouteCache
	orc      oracle.Oracle

	currentTick int
}

// New builds a Pathfinder. cache and orc may be nil (no caching, no
// deadlock-risk shaping).
func New(g *grid.Grid, cm *corridor.Map, t Tunables, cache *corridor.RouteCache, orc oracle.Oracle) *Pathfinder {
	if orc == nil {
		orc = oracle.NullOracle{}
	}
	return &Pathfinder{g: g, cm: cm, tunables: t, res: reservation.New(), cache: cache, orc: orc}
}

// Reservations exposes the shared reservation table for the scheduler's
// arbitration phase.
func (p *Pathfinder) Reservations() *reservation.Table { return p.res }

// UpdateTick advances the pathfinder's clock and purges stale
// reservations. Call once per tick before planning.
func (p *Pathfinder) UpdateTick(tick int) {
	p.currentTick = tick
	p.res.ClearBefore(tick)
}

// ClearAgentReservations drops agent's bookings, e.g. before a replan.
func (p *Pathfinder) ClearAgentReservations(id fleet.AgentID) {
	p.res.ClearAgent(id)
}

// GetPriority computes the state-weighted planning-order priority used
// to sequence the planning and arbitration passes.
func (p *Pathfinder) GetPriority(agent *fleet.Agent) int {
	base := statePriority[agent.State]
	waitBonus := agent.WaitCount * 100
	distBonus := 0
	if len(agent.Path) > 0 {
		distBonus = 500 - minInt(len(agent.Path), 500)
	}
	momentumBonus := agent.Momentum * 50
	return base + waitBonus + distBonus + momentumBonus
}

// FindPath plans a route for agent to goal avoiding blocked, preferring
// the time-space A* search with reservations, reserving the path on
// success, and falling back to a plain A* (no time dimension, no
// reservations) if the time-space search comes up empty.
func (p *Pathfinder) FindPath(f *fleet.Fleet, agent *fleet.Agent, goal grid.Cell, blocked map[grid.Cell]struct{}) []grid.Cell {
	key := corridor.RouteCacheKey{Start: agent.Pos, Goal: goal, State: agent.State}
	if p.cache != nil && agent.WaitCount == 0 {
		if cached, ok := p.cache.Get(key); ok && p.pathStillClear(cached, blocked) {
			p.res.ReservePath(agent.ID, cached, p.currentTick+1)
			return cached
		}
	}

	path := p.timeSpaceAStar(f, agent, goal, p.currentTick, blocked)
	if path == nil {
		path = p.fallbackAStar(f, agent, goal, blocked)
	}

	if len(path) > 0 {
		p.res.ReservePath(agent.ID, path, p.currentTick+1)
		if p.cache != nil {
			p.cache.Put(key, path)
		}
	}
	return path
}

func (p *Pathfinder) pathStillClear(path []grid.Cell, blocked map[grid.Cell]struct{}) bool {
	for _, c := range path {
		if _, hit := blocked[c]; hit {
			return false
		}
	}
	return true
}

// InvalidateCache drops cached routes touching any cell in changed.
func (p *Pathfinder) InvalidateCache(changed map[grid.Cell]struct{}) {
	if p.cache != nil {
		p.cache.Invalidate(changed)
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
