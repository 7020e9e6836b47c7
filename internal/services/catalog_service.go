package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lana/internal/core"
	"lana/internal/ledger"
)

// CatalogStore holds the reference data transactions point at.
type CatalogStore interface {
	ledger.CategoryStore
	ledger.AccountStore
}

// CatalogService manages accounts and categories.
type CatalogService struct {
	store CatalogStore
}

func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{store: store}
}

func (s *CatalogService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	id, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.ID = id
	return c, nil
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *CatalogService) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Name = strings.TrimSpace(a.Name)
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	id, err := s.store.CreateAccount(ctx, a)
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	a.ID = id
	return a, nil
}

// GetAccount hides accounts of other owners behind ledger.ErrNotFound.
func (s *CatalogService) GetAccount(ctx context.Context, owner, id int64) (core.Account, error) {
	a, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, err
	}
	if a.OwnerID != owner {
		return core.Account{}, ledger.ErrNotFound
	}
	return a, nil
}

// checkRefs verifies that account belongs to owner and that category exists.
func checkRefs(ctx context.Context, store CatalogStore, owner, account, category int64) (core.Category, error) {
	a, err := store.GetAccount(ctx, account)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return core.Category{}, fmt.Errorf("account %d: %w", account, core.ErrInvalidReference)
		}
		return core.Category{}, fmt.Errorf("get account: %w", err)
	}
	if a.OwnerID != owner {
		return core.Category{}, fmt.Errorf("account %d: %w", account, core.ErrInvalidReference)
	}
	return checkCategory(ctx, store, category)
}

func checkCategory(ctx context.Context, store ledger.CategoryStore, category int64) (core.Category, error) {
	c, err := store.GetCategory(ctx, category)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return core.Category{}, fmt.Errorf("category %d: %w", category, core.ErrInvalidReference)
		}
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}
