package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - thread:user:{user_id} - open thread lookup, 5m TTL, dropped on close

// CacheConfig contains configuration for caching
type CacheConfig struct {
	ThreadTTL time.Duration // TTL for the open-thread lookup (default 5m)
}

// DefaultCacheConfig returns sensible defaults
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ThreadTTL: 5 * time.Minute,
	}
}

// CacheStore handles caching in Redis
type CacheStore struct {
	client *goredis.Client
	config CacheConfig
}

// NewCacheStore creates a new cache store
func NewCacheStore(client *goredis.Client, config CacheConfig) *CacheStore {
	return &CacheStore{
		client: client,
		config: config,
	}
}

// ThreadCache is the cached open-thread pointer for one user.
type ThreadCache struct {
	ThreadID  uuid.UUID `json:"thread_id"`
	UserID    string    `json:"user_id"`
	ChannelID string    `json:"channel_id"`
}

// GetOpenThread retrieves the cached open-thread pointer for a user.
func (c *CacheStore) GetOpenThread(ctx context.Context, userID string) (*ThreadCache, error) {
	key := fmt.Sprintf("thread:user:%s", userID)
	data, err := c.client.Get(ctx, key).Result()
	if err == goredis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}

	var cached ThreadCache
	if err := json.Unmarshal([]byte(data), &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

// SetOpenThread caches the open-thread pointer for a user.
func (c *CacheStore) SetOpenThread(ctx context.Context, cached ThreadCache) error {
	key := fmt.Sprintf("thread:user:%s", cached.UserID)
	data, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.config.ThreadTTL).Err()
}

// InvalidateOpenThread drops the cached pointer, e.g. after a close.
func (c *CacheStore) InvalidateOpenThread(ctx context.Context, userID string) error {
	key := fmt.Sprintf("thread:user:%s", userID)
	return c.client.Del(ctx, key).Err()
}
