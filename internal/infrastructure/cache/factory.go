package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/infrastructure/config"
)

// CorrelationStoreFactory creates correlation stores based on configuration
type CorrelationStoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
	redisConnector        func(RedisConfig) (connection.CorrelationStore, error)
}

// CorrelationStoreFactoryOption is a functional option for configuring the factory
type CorrelationStoreFactoryOption func(*CorrelationStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) CorrelationStoreFactoryOption {
	return func(f *CorrelationStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory store when Redis is unavailable
func WithInMemoryFallback(allow bool) CorrelationStoreFactoryOption {
	return func(f *CorrelationStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewCorrelationStoreFactory creates a new factory
func NewCorrelationStoreFactory(cfg config.RedisConfig, opts ...CorrelationStoreFactoryOption) *CorrelationStoreFactory {
	f := &CorrelationStoreFactory{
		redisConfig: cfg,
		logger:      zap.NewNop(),
		redisConnector: func(rc RedisConfig) (connection.CorrelationStore, error) {
			return NewRedisCorrelationStore(rc)
		},
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// CreateRedisStore creates a Redis-based correlation store
func (f *CorrelationStoreFactory) CreateRedisStore() (connection.CorrelationStore, error) {
	store, err := f.redisConnector(RedisConfig{
		Addr:     f.redisConfig.Addr(),
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis correlation store: %w", err)
	}
	return store, nil
}

// CreateInMemoryStore creates an in-memory correlation store.
// WARNING: entries are not shared across instances, so a callback routed to another
// replica cannot be correlated through the cache.
func (f *CorrelationStoreFactory) CreateInMemoryStore() connection.CorrelationStore {
	return NewInMemoryCorrelationStore(0)
}

// CreateStore tries Redis first and falls back to in-memory when allowed
func (f *CorrelationStoreFactory) CreateStore() (connection.CorrelationStore, error) {
	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("using Redis correlation store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for correlation but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory correlation store. "+
		"Callbacks handled by other instances will rely on sealed tokens only.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
