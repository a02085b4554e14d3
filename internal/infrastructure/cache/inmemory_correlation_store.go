package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/erp/connhub/internal/domain/connection"
)

// InMemoryCorrelationStore implements CorrelationStore with go-cache.
// It is suitable for single-instance deployments and testing.
type InMemoryCorrelationStore struct {
	// mu makes get+delete in Recall a single step
	mu    sync.Mutex
	cache *gocache.Cache
}

// NewInMemoryCorrelationStore creates a new in-memory correlation store.
// go-cache runs a janitor that evicts expired entries every cleanupInterval.
func NewInMemoryCorrelationStore(cleanupInterval time.Duration) *InMemoryCorrelationStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &InMemoryCorrelationStore{
		cache: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Remember stores the user for key with a TTL
func (s *InMemoryCorrelationStore) Remember(_ context.Context, key, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(key, userID, ttl)
	return nil
}

// Recall returns and deletes the entry. Expired entries are reported as misses.
func (s *InMemoryCorrelationStore) Recall(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, found := s.cache.Get(key)
	if !found {
		return "", false, nil
	}
	s.cache.Delete(key)

	userID, ok := value.(string)
	if !ok {
		return "", false, nil
	}
	return userID, true, nil
}

// Close flushes the store. go-cache stops its janitor when the cache is collected.
func (s *InMemoryCorrelationStore) Close() error {
	s.cache.Flush()
	return nil
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryCorrelationStore) Size() int {
	return s.cache.ItemCount()
}

// Ensure InMemoryCorrelationStore implements CorrelationStore
var _ connection.CorrelationStore = (*InMemoryCorrelationStore)(nil)
