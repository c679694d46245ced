package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * time.Second

// Cache is a redis-backed cache-aside layer for unwindowed stats
// reports. The engine invalidates a user's entry on every mutation.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewCache(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = "stats:"
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

// Get loads a cached report. Returns false on a miss.
func (c *Cache) Get(ctx context.Context, userID string, dest *Report) (bool, error) {
	data, err := c.client.Get(ctx, c.prefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal: %w", err)
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, userID string, report *Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+userID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// InvalidateUser drops the user's cached report. Satisfies the engine's
// CacheInvalidator.
func (c *Cache) InvalidateUser(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.prefix+userID).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
