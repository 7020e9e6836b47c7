package backend

import (
	"context"
	"fmt"
	"log/slog"

	"lana/internal/cache"
	"lana/internal/ledger"
	"lana/internal/ledger/memory"
	"lana/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store ledger.Store
		err   error
	)
	switch config.Type {
	case MemoryBackend:
		store = memory.New()
		f.logger.Info("Initialized memory backend")
	case SQLiteBackend:
		store, err = storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case PostgresBackend:
		store, err = storage.NewPostgresRepository(ctx, config.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	if config.CategoryCacheTTL <= 0 {
		return &BackendResult{Store: store, Cleanup: store.Close}, nil
	}

	size := config.CategoryCacheSize
	if size <= 0 {
		size = defaultCategoryCacheSize
	}
	cached := cache.WithCategoryCache(store, size, config.CategoryCacheTTL)
	manager := cache.NewManager()
	for _, c := range cached.Cleaners() {
		manager.Register(c)
	}
	manager.StartCleanup(config.CategoryCacheTTL)

	f.logger.Info("Category cache enabled", "size", size, "ttl", config.CategoryCacheTTL)

	return &BackendResult{
		Store: cached,
		Cleanup: func() error {
			manager.Stop()
			return store.Close()
		},
	}, nil
}
