package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the subset of the Redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache: miss")

const (
	CatalogKey         = "catalog:items"
	sessionInventoryNS = "session:inventory:"
)

// SessionInventoryKey is where the local inventory mirror of a session lives.
func SessionInventoryKey(userID string) string {
	return sessionInventoryNS + userID
}

type CacheService struct {
	store Store
}

func NewCacheService(store Store) *CacheService {
	return &CacheService{store: store}
}

// Get decodes the value stored under key into dest.
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.store.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Set stores value as JSON.
func (c *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.store.Set(ctx, key, data, ttl).Err()
}

func (c *CacheService) Delete(ctx context.Context, keys ...string) error {
	return c.store.Del(ctx, keys...).Err()
}

// DeletePattern removes every key matching pattern, scanning in batches.
func (c *CacheService) DeletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.store.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.store.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// GetOrSet reads key into dest, or calls setter, stores its result and
// decodes it into dest. A failing store never hides the setter's value.
func (c *CacheService) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, setter func() (interface{}, error)) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	}

	value, err := setter()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_ = c.store.Set(ctx, key, data, ttl).Err()

	return json.Unmarshal(data, dest)
}

// InvalidateCatalog drops the cached catalog snapshot.
func (c *CacheService) InvalidateCatalog(ctx context.Context) error {
	return c.Delete(ctx, CatalogKey)
}

// InvalidateSession drops every mirror kept for userID.
func (c *CacheService) InvalidateSession(ctx context.Context, userID string) error {
	return c.DeletePattern(ctx, fmt.Sprintf("session:*:%s", userID))
}
