package allocation

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Actions
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
	ActionHold = "hold"
)

// Priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
)

// Rebalancing parameters
const (
	RebalanceThreshold    = 0.01
	HighPriorityThreshold = 0.05
	TransactionCostRate   = 0.001
	maxPriorityOrder      = 5
)

// Target is an instrument-level target weight.
type Target struct {
	Segment       string  `json:"asset_class"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Action        string  `json:"recommended_action"`
	Rationale     string  `json:"rationale"`
	CurrentWeight float64 `json:"current_weight"`
	TargetWeight  float64 `json:"target_weight"`
}

// Instruction is one trade needed to move a holding toward its target.
type Instruction struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Action        string          `json:"action"`
	Priority      string          `json:"priority"`
	Rationale     string          `json:"rationale"`
	Notional      decimal.Decimal `json:"notional"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
	CurrentWeight float64         `json:"current_weight"`
	TargetWeight  float64         `json:"target_weight"`
}

func (i Instruction) diff() float64 {
	return math.Abs(i.TargetWeight - i.CurrentWeight)
}

// Plan is an ordered set of rebalancing instructions.
type Plan struct {
	Instructions       []Instruction   `json:"instructions"`
	PriorityOrder      []string        `json:"priority_order"`
	TotalEstimatedCost decimal.Decimal `json:"total_estimated_cost"`
	TotalTrades        int             `json:"total_trades"`
}

// actionFor returns buy, sell or hold for a weight move.
func actionFor(current, target float64) string {
	diff := target - current
	switch {
	case diff > RebalanceThreshold:
		return ActionBuy
	case diff < -RebalanceThreshold:
		return ActionSell
	default:
		return ActionHold
	}
}

// Rebalance diffs targets against current symbol weights. Only moves larger
// than RebalanceThreshold produce an instruction. Instructions are ordered
// high priority first, then by move size, largest first. Holdings without a
// target are left alone. A portfolio with no value gets an empty plan.
func Rebalance(targets []Target, current map[string]float64, totalValue decimal.Decimal) Plan {
	plan := Plan{
		Instructions:       []Instruction{},
		PriorityOrder:      []string{},
		TotalEstimatedCost: decimal.Zero,
	}
	if !totalValue.IsPositive() {
		return plan
	}
	costRate := decimal.NewFromFloat(TransactionCostRate)

	for _, t := range targets {
		cur := current[t.Symbol]
		diff := t.TargetWeight - cur
		if math.Abs(diff) <= RebalanceThreshold {
			continue
		}

		priority := PriorityMedium
		if math.Abs(diff) > HighPriorityThreshold {
			priority = PriorityHigh
		}

		notional := totalValue.Mul(decimal.NewFromFloat(math.Abs(diff))).Round(2)
		cost := notional.Mul(costRate).Round(2)

		plan.Instructions = append(plan.Instructions, Instruction{
			Symbol:        t.Symbol,
			Name:          t.Name,
			Action:        actionFor(cur, t.TargetWeight),
			Priority:      priority,
			Rationale:     t.Rationale,
			Notional:      notional,
			EstimatedCost: cost,
			CurrentWeight: cur,
			TargetWeight:  t.TargetWeight,
		})
		plan.TotalEstimatedCost = plan.TotalEstimatedCost.Add(cost)
	}

	sort.SliceStable(plan.Instructions, func(i, j int) bool {
		a, b := plan.Instructions[i], plan.Instructions[j]
		if a.Priority != b.Priority {
			return a.Priority == PriorityHigh
		}
		return a.diff() > b.diff()
	})

	plan.TotalTrades = len(plan.Instructions)
	for i, ins := range plan.Instructions {
		if i == maxPriorityOrder {
			break
		}
		plan.PriorityOrder = append(plan.PriorityOrder, ins.Symbol)
	}
	return plan
}
