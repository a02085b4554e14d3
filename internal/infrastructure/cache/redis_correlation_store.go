package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/erp/connhub/internal/domain/connection"
)

// correlationKeyPrefix namespaces every correlation entry
const correlationKeyPrefix = "connhub:corr:"

// RedisCorrelationStore implements CorrelationStore using Redis.
// Entries are shared by every instance, so a callback may land on any replica.
type RedisCorrelationStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCorrelationStore creates a new Redis-based correlation store
func NewRedisCorrelationStore(cfg RedisConfig) (*RedisCorrelationStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCorrelationStoreWithClient(client, ""), nil
}

// NewRedisCorrelationStoreWithClient creates a store with an existing Redis client
func NewRedisCorrelationStoreWithClient(client *redis.Client, keyPrefix string) *RedisCorrelationStore {
	if keyPrefix == "" {
		keyPrefix = correlationKeyPrefix
	}
	return &RedisCorrelationStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Remember stores the user for key with a TTL, overwriting any previous value
func (s *RedisCorrelationStore) Remember(ctx context.Context, key, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store correlation entry: %w", err)
	}
	return nil
}

// Recall returns and deletes the entry in one GETDEL round trip, so two callbacks
// racing on the same token cannot both consume it
func (s *RedisCorrelationStore) Recall(ctx context.Context, key string) (string, bool, error) {
	userID, err := s.client.GetDel(ctx, s.keyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to recall correlation entry: %w", err)
	}
	return userID, true, nil
}

// Close closes the Redis client
func (s *RedisCorrelationStore) Close() error {
	return s.client.Close()
}

// Ensure RedisCorrelationStore implements CorrelationStore
var _ connection.CorrelationStore = (*RedisCorrelationStore)(nil)

// Ping checks that Redis is reachable
func (s *RedisCorrelationStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
