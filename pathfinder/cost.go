package pathfinder

import (
	"context"

	"github.com/gridfleet/gridfleet/corridor"
	"github.com/gridfleet/gridfleet/fleet"
	"github.com/gridfleet/gridfleet/grid"
	"github.com/gridfleet/gridfleet/oracle"
)

// Tunables collects the cost-model constants a Pathfinder is built with.
// Values come from config.Tunables; kept separate here so this package
// does not depend on config.
type Tunables struct {
	TurnPenalty    float64
	CorridorBonus  float64
	WaitCost       float64
	MaxWaitActions int
	TimeHorizon    int
}

const (
	narrowPenaltyFactor   = 1.5
	narrowExemptPriority  = 2000
	highwayFloor          = 0.85
	highwayScale          = 0.03
	mainCorridorFactor    = 0.92
	momentumFloor         = 0.65
	momentumScale         = 0.06
	corridorHighScore     = 6
	corridorLowScore      = 2
	corridorHighFactor    = 1.0 // multiplied by Tunables.CorridorBonus (<1)
	corridorLowFactor     = 1.3
	oracleWaitThreshold   = 5
	oracleMaxContribution = 1.5
	oracleScale           = 2.0
	oracleSameDirScale    = 0.3
	goalAlignedBias       = 0.92
	momentumBias          = 0.95
	momentumBiasThreshold = 3
	defaultBias           = 1.0
)

// agentSnapshot is the minimal, read-only view of an agent the cost
// model needs — passed by value so the search never mutates the fleet.
type agentSnapshot struct {
	ID       fleet.AgentID
	State    fleet.AgentState
	LastDir  grid.Dir
	Momentum int
	WaitCount int
	Priority int
}

// stepCost computes the edge cost of moving from current to next via
// moveDir, per the documented multiplicative/additive composition.
func stepCost(
	t Tunables,
	g *grid.Grid,
	cm *corridor.Map,
	orc oracle.Oracle,
	agent agentSnapshot,
	current, next grid.Cell,
	moveDir grid.Dir,
) float64 {
	cost := 1.0

	cost += (float64(agent.ID) - 3*float64(int(agent.ID)/3)) * 0.15 // (id mod 3) * 0.15

	if grid.IsTurn(agent.LastDir, moveDir) {
		cost += t.TurnPenalty * 0.7
	}

	score := cm.CorridorScore(next)
	switch {
	case score >= corridorHighScore:
		cost *= t.CorridorBonus
	case score <= corridorLowScore:
		cost *= corridorLowFactor
	}

	if cm != nil {
		hw := cm.HighwayBonus(next)
		if hw > 0 {
			cost *= max64(highwayFloor, 1-hw*highwayScale)
		}
		if cm.IsOnMainCorridor(next) {
			cost *= mainCorridorFactor
		}
	}

	if moveDir == agent.LastDir && agent.Momentum > 0 {
		cost *= max64(momentumFloor, 1-momentumScale*float64(agent.Momentum))
	}

	if g.IsNarrowPassage(next) && agent.Priority < narrowExemptPriority {
		cost *= narrowPenaltyFactor
	}

	if agent.WaitCount >= oracleWaitThreshold && agent.State != fleet.IDLE && orc != nil {
		pred, ok := orc.PredictDeadlock(context.Background(), oracle.Features{
			FromRow: current.Row, FromCol: current.Col,
			ToRow: next.Row, ToCol: next.Col,
			Wait: agent.WaitCount,
		})
		if ok {
			contribution := min64(oracleMaxContribution, pred.PDeadlock*oracleScale)
			if moveDir == agent.LastDir {
				contribution *= oracleSameDirScale
			}
			cost += contribution
		}
	}

	return cost
}

func heuristicBias(moveDir, goalDir grid.Dir, momentum int, lastDir grid.Dir) float64 {
	if momentum >= momentumBiasThreshold && moveDir == lastDir {
		return momentumBias
	}
	if moveDir.DRow == goalDir.DRow && goalDir.DRow != 0 || moveDir.DCol == goalDir.DCol && goalDir.DCol != 0 {
		return goalAlignedBias
	}
	return defaultBias
}

func max64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
