package services

import (
	"context"
	"errors"
	"fmt"

	"lana/internal/core"
	"lana/internal/ledger"
)

const (
	DefaultTopCategories = 5
	MaxTopCategories     = 50
)

var ErrInvalidTopLimit = errors.New("limit must be between 1 and 50")

type ReportStore interface {
	ledger.ReportReader
	ledger.ExpenseAggregator
	ListBudgets(ctx context.Context, owner int64, p core.Period) ([]core.Budget, error)
}

// ReportService aggregates an owner's ledger into monthly and yearly views.
// Every figure is recomputed from transactions on each call.
type ReportService struct {
	store ReportStore
}

func NewReportService(store ReportStore) *ReportService {
	return &ReportService{store: store}
}

// MonthOverview totals income and expenses per category for p.
func (s *ReportService) MonthOverview(ctx context.Context, owner int64, p core.Period) (core.MonthOverview, error) {
	if owner <= 0 {
		return core.MonthOverview{}, core.ErrInvalidOwner
	}
	if err := p.Validate(); err != nil {
		return core.MonthOverview{}, err
	}
	totals, err := s.store.CategoryTotals(ctx, owner, p.Start(), p.End())
	if err != nil {
		return core.MonthOverview{}, fmt.Errorf("month overview %s: %w", p, err)
	}
	return core.NewMonthOverview(p, totals), nil
}

// YearHistory returns income, expense and balance for each month of year that
// has transactions.
func (s *ReportService) YearHistory(ctx context.Context, owner int64, year int) (core.YearHistory, error) {
	if owner <= 0 {
		return core.YearHistory{}, core.ErrInvalidOwner
	}
	if err := (core.Period{Year: year, Month: 1}).Validate(); err != nil {
		return core.YearHistory{}, err
	}
	months, err := s.store.MonthlyTotals(ctx, owner, year)
	if err != nil {
		return core.YearHistory{}, fmt.Errorf("year history %d: %w", year, err)
	}
	return core.NewYearHistory(year, months), nil
}

// TopCategories ranks the categories of kind by amount over a whole year, or
// over one month of it when month is not zero.
func (s *ReportService) TopCategories(ctx context.Context, owner int64, kind core.CategoryKind, year, month, limit int) ([]core.CategoryShare, error) {
	if owner <= 0 {
		return nil, core.ErrInvalidOwner
	}
	if !kind.Valid() {
		return nil, core.ErrInvalidKind
	}
	if limit < 1 || limit > MaxTopCategories {
		return nil, ErrInvalidTopLimit
	}

	from, to := core.NewDate(year, 1, 1), core.NewDate(year+1, 1, 1)
	p := core.Period{Year: year, Month: month}
	if month == 0 {
		p.Month = 1
	} else {
		from, to = p.Start(), p.End()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	totals, err := s.store.CategoryTotals(ctx, owner, from, to)
	if err != nil {
		return nil, fmt.Errorf("top categories: %w", err)
	}
	return core.TopCategories(totals, kind, limit), nil
}

// Budgets returns the status of every budget the owner set for p.
func (s *ReportService) Budgets(ctx context.Context, owner int64, p core.Period) ([]core.BudgetStatus, error) {
	if owner <= 0 {
		return nil, core.ErrInvalidOwner
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	budgets, err := s.store.ListBudgets(ctx, owner, p)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make([]core.BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		spent, err := s.store.SumExpenses(ctx, owner, b.CategoryID, p)
		if err != nil {
			return nil, fmt.Errorf("sum expenses for budget %d: %w", b.ID, err)
		}
		out = append(out, core.NewBudgetStatus(b, spent))
	}
	return out, nil
}
