package cache

import (
	"context"
	"strconv"
	"time"

	"lana/internal/core"
	"lana/internal/ledger"
)

const allCategories = "all"

// CategoryStore caches the category catalog in front of a ledger.Store.
// Categories are read on every transaction, budget and payment write but
// only change through CreateCategory, which invalidates the list.
// Expense sums and budgets are never cached.
type CategoryStore struct {
	ledger.Store
	byID *LRUCache[core.Category]
	list *LRUCache[[]core.Category]
}

func WithCategoryCache(store ledger.Store, size int, ttl time.Duration) *CategoryStore {
	return &CategoryStore{
		Store: store,
		byID:  NewLRUCache[core.Category](size, ttl),
		list:  NewLRUCache[[]core.Category](1, ttl),
	}
}

func (s *CategoryStore) Cleaners() []Cleaner {
	return []Cleaner{s.byID, s.list}
}

func (s *CategoryStore) CreateCategory(ctx context.Context, c core.Category) (int64, error) {
	id, err := s.Store.CreateCategory(ctx, c)
	if err != nil {
		return 0, err
	}
	s.list.Purge()
	return id, nil
}

func (s *CategoryStore) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	key := strconv.FormatInt(id, 10)
	if c, ok := s.byID.Get(key); ok {
		return c, nil
	}
	c, err := s.Store.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, err
	}
	s.byID.Set(key, c)
	return c, nil
}

func (s *CategoryStore) ListCategories(ctx context.Context) ([]core.Category, error) {
	if list, ok := s.list.Get(allCategories); ok {
		return append([]core.Category(nil), list...), nil
	}
	list, err := s.Store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	s.list.Set(allCategories, append([]core.Category(nil), list...))
	return list, nil
}
