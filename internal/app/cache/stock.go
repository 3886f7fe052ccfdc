// Package cache provides an optional Redis layer for hot storefront reads.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// StockCache caches aggregate stock quantities per product. A nil *StockCache
// is valid and disables caching, so callers never need to branch.
type StockCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStockCache connects to Redis at addr. An empty addr returns nil,
// disabling the cache.
func NewStockCache(addr, password string, ttl time.Duration) (*StockCache, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StockCache{client: client, ttl: ttl}, nil
}

func stockCacheKey(tenantID, productID string) string {
	return "stock:" + tenantID + ":" + productID
}

// Get returns the cached quantity and whether it was present.
func (c *StockCache) Get(ctx context.Context, tenantID, productID string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	val, err := c.client.Get(ctx, stockCacheKey(tenantID, productID)).Result()
	if err != nil {
		return 0, false
	}
	qty, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return qty, true
}

// Set stores the quantity for the cache TTL.
func (c *StockCache) Set(ctx context.Context, tenantID, productID string, qty float64) {
	if c == nil {
		return
	}
	c.client.Set(ctx, stockCacheKey(tenantID, productID), strconv.FormatFloat(qty, 'f', -1, 64), c.ttl)
}

// Invalidate drops the cached quantity after a stock write.
func (c *StockCache) Invalidate(ctx context.Context, tenantID, productID string) {
	if c == nil {
		return
	}
	c.client.Del(ctx, stockCacheKey(tenantID, productID))
}

// Close releases the Redis connection.
func (c *StockCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
