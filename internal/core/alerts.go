package core

import (
	"github.com/shopspring/decimal"
)

const (
	TierNone AlertTier = ""
	Tier80   AlertTier = "80%"
	Tier100  AlertTier = "100%"
)

var (
	threshold80  = decimal.New(8, -1)
	threshold100 = decimal.NewFromInt(1)
)

type AlertTier string

// BudgetStatus is a point-in-time view of a budget. Spent is recomputed from
// the ledger every time, never stored.
type BudgetStatus struct {
	Budget      Budget
	Spent       Money
	Remaining   Money
	Utilization decimal.Decimal
}

// Utilization returns spent/limit. A non-positive limit yields zero.
func Utilization(spent, limit Money) decimal.Decimal {
	if limit.Cents <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(spent.Cents).Div(decimal.NewFromInt(limit.Cents))
}

// AlertTierFor picks the single alert a budget raises for the given spend.
// The 100% tier wins only when its flag is enabled; otherwise a spend past the
// limit still raises the 80% alert if that one is on.
func AlertTierFor(b Budget, spent Money) AlertTier {
	u := Utilization(spent, b.Limit)
	if u.GreaterThanOrEqual(threshold100) && b.Alert100 {
		return Tier100
	}
	if u.GreaterThanOrEqual(threshold80) && b.Alert80 {
		return Tier80
	}
	return TierNone
}

// NewBudgetStatus computes the status of b for the given spend.
func NewBudgetStatus(b Budget, spent Money) BudgetStatus {
	return BudgetStatus{
		Budget:      b,
		Spent:       spent,
		Remaining:   b.Limit.Sub(spent),
		Utilization: Utilization(spent, b.Limit),
	}
}

// Tier is the alert the status would raise right now.
func (s BudgetStatus) Tier() AlertTier { return AlertTierFor(s.Budget, s.Spent) }
