package core

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CategoryAmount is an amount aggregated by category.
type CategoryAmount struct {
	CategoryID int64
	Name       string
	Kind       CategoryKind
	Amount     Money
}

// MonthOverview splits one month of an owner's ledger by category.
type MonthOverview struct {
	Period       Period
	Income       []CategoryAmount
	Expenses     []CategoryAmount
	TotalIncome  Money
	TotalExpense Money
}

// NewMonthOverview sorts per-category totals into income and expenses,
// largest first.
func NewMonthOverview(p Period, totals []CategoryAmount) MonthOverview {
	o := MonthOverview{Period: p}
	for _, t := range totals {
		switch t.Kind {
		case Income:
			o.Income = append(o.Income, t)
			o.TotalIncome = o.TotalIncome.Add(t.Amount)
		case Expense:
			o.Expenses = append(o.Expenses, t)
			o.TotalExpense = o.TotalExpense.Add(t.Amount)
		}
	}
	sortByAmount(o.Income)
	sortByAmount(o.Expenses)
	return o
}

// Balance is income minus expenses.
func (o MonthOverview) Balance() Money { return o.TotalIncome.Sub(o.TotalExpense) }

func sortByAmount(items []CategoryAmount) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Amount.Cents != items[j].Amount.Cents {
			return items[i].Amount.Cents > items[j].Amount.Cents
		}
		return items[i].Name < items[j].Name
	})
}

// MonthTotals is one month of a yearly history.
type MonthTotals struct {
	Month   int // 1-12
	Income  Money
	Expense Money
}

func (m MonthTotals) Balance() Money { return m.Income.Sub(m.Expense) }

// YearHistory holds the months of Year that have transactions, in calendar
// order.
type YearHistory struct {
	Year         int
	Months       []MonthTotals
	TotalIncome  Money
	TotalExpense Money
}

func NewYearHistory(year int, months []MonthTotals) YearHistory {
	h := YearHistory{Year: year, Months: months}
	sort.Slice(h.Months, func(i, j int) bool { return h.Months[i].Month < h.Months[j].Month })
	for _, m := range h.Months {
		h.TotalIncome = h.TotalIncome.Add(m.Income)
		h.TotalExpense = h.TotalExpense.Add(m.Expense)
	}
	return h
}

func (h YearHistory) Balance() Money { return h.TotalIncome.Sub(h.TotalExpense) }

// CategoryShare is a category's part of the total for its kind, in percent
// rounded to two places.
type CategoryShare struct {
	CategoryAmount
	Percent decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// TopCategories returns the limit largest categories of kind together with
// their share of everything booked under kind. A limit of zero or less
// returns every category. The shares are computed against the full total,
// not the truncated list.
func TopCategories(totals []CategoryAmount, kind CategoryKind, limit int) []CategoryShare {
	var (
		picked []CategoryAmount
		total  Money
	)
	for _, t := range totals {
		if t.Kind != kind {
			continue
		}
		picked = append(picked, t)
		total = total.Add(t.Amount)
	}
	sortByAmount(picked)
	if limit > 0 && len(picked) > limit {
		picked = picked[:limit]
	}

	out := make([]CategoryShare, 0, len(picked))
	for _, c := range picked {
		share := CategoryShare{CategoryAmount: c, Percent: decimal.Zero}
		if total.Cents != 0 {
			share.Percent = decimal.NewFromInt(c.Amount.Cents).
				Mul(hundred).
				Div(decimal.NewFromInt(total.Cents)).
				Round(2)
		}
		out = append(out, share)
	}
	return out
}
