package services

import (
	"context"
	"fmt"

	"lana/internal/core"
	"lana/internal/ledger"
	applog "lana/internal/log"
)

// TransactionStore is what recording a transaction touches.
type TransactionStore interface {
	CatalogStore
	ledger.TransactionWriter
}

// TransactionService records ledger entries and runs the budget check that
// follows every expense.
type TransactionService struct {
	store     TransactionStore
	evaluator ExpenseEvaluator
}

func NewTransactionService(store TransactionStore, evaluator ExpenseEvaluator) *TransactionService {
	return &TransactionService{store: store, evaluator: evaluator}
}

// Record stores tx and, for expense categories, evaluates the budget. The
// budget check never fails the request: the transaction is already stored.
func (s *TransactionService) Record(ctx context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	category, err := checkRefs(ctx, s.store, tx.OwnerID, tx.AccountID, tx.CategoryID)
	if err != nil {
		return 0, err
	}

	id, err := s.store.InsertTransaction(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("save transaction: %w", err)
	}

	logger := applog.FromContext(ctx)
	applog.NewStructuredLogger(logger).LogTransactionRecorded(ctx, tx.OwnerID, id, tx.AccountID, tx.CategoryID, tx.Amount.Cents)

	if category.Kind == core.Expense && s.evaluator != nil {
		if err := s.evaluator.Evaluate(ctx, tx.OwnerID, tx.CategoryID, tx.Date, tx.Amount); err != nil {
			logger.ErrorContext(ctx, "Failed to evaluate budget",
				applog.FieldTransactionID, id,
				applog.FieldCategoryID, tx.CategoryID,
				applog.FieldError, err)
		}
	}

	return id, nil
}
