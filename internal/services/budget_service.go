package services

import (
	"context"
	"fmt"

	"lana/internal/core"
	"lana/internal/ledger"
)

type BudgetServiceStore interface {
	ledger.BudgetStore
	ledger.ExpenseAggregator
	ledger.CategoryStore
}

// BudgetService manages monthly category budgets.
type BudgetService struct {
	store BudgetServiceStore
}

func NewBudgetService(store BudgetServiceStore) *BudgetService {
	return &BudgetService{store: store}
}

// Create stores b. A second budget for the same owner, category and period
// fails with ledger.ErrConflict.
func (s *BudgetService) Create(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	category, err := checkCategory(ctx, s.store, b.CategoryID)
	if err != nil {
		return core.Budget{}, err
	}

	id, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	b.ID = id
	b.CategoryName = category.Name
	return b, nil
}

// Get returns the budget when it belongs to owner.
func (s *BudgetService) Get(ctx context.Context, owner, id int64) (core.Budget, error) {
	b, err := s.store.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, err
	}
	if b.OwnerID != owner {
		return core.Budget{}, ledger.ErrNotFound
	}
	return b, nil
}

func (s *BudgetService) Update(ctx context.Context, owner, id int64, u core.BudgetUpdate) (core.Budget, error) {
	if err := u.Validate(); err != nil {
		return core.Budget{}, err
	}
	b, err := s.Get(ctx, owner, id)
	if err != nil {
		return core.Budget{}, err
	}
	u.Apply(&b)
	if err := s.store.UpdateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("update budget: %w", err)
	}
	return b, nil
}

// Status recomputes the spend of the budget period from the ledger.
func (s *BudgetService) Status(ctx context.Context, owner, id int64) (core.BudgetStatus, error) {
	b, err := s.Get(ctx, owner, id)
	if err != nil {
		return core.BudgetStatus{}, err
	}
	spent, err := s.store.SumExpenses(ctx, b.OwnerID, b.CategoryID, b.Period)
	if err != nil {
		return core.BudgetStatus{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.NewBudgetStatus(b, spent), nil
}
