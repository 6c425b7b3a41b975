package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/adjust_stock.lua
var adjustStockScript string

type Client struct {
	rdb          *redis.Client
	adjustScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:          rdb,
		adjustScript: redis.NewScript(adjustStockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AdjustStock atomically applies a delta to the cached stock mirror for an
// item. The mirror is advisory (dashboard fast path); Postgres stays the
// source of truth, so an unwarmed key is left alone.
func (c *Client) AdjustStock(ctx context.Context, itemID string, delta int) error {
	key := fmt.Sprintf("stock:%s", itemID)

	_, err := c.adjustScript.Run(ctx, c.rdb, []string{key}, delta).Result()
	if err != nil {
		return fmt.Errorf("adjust stock script failed: %w", err)
	}
	return nil
}

// InitStock seeds the stock mirror for an item
func (c *Client) InitStock(ctx context.Context, itemID string, quantity int) error {
	return c.rdb.Set(ctx, fmt.Sprintf("stock:%s", itemID), quantity, 0).Err()
}

// GetStock reads the cached stock mirror for an item
func (c *Client) GetStock(ctx context.Context, itemID string) (int, error) {
	val, err := c.rdb.Get(ctx, fmt.Sprintf("stock:%s", itemID)).Int()
	if err != nil {
		return 0, err
	}
	return val, nil
}

// SetCachedStats stores a serialized dashboard stats blob with TTL
func (c *Client) SetCachedStats(ctx context.Context, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, "dashboard:stats", payload, ttl).Err()
}

// GetCachedStats retrieves the cached dashboard stats blob, if present
func (c *Client) GetCachedStats(ctx context.Context) ([]byte, error) {
	val, err := c.rdb.Get(ctx, "dashboard:stats").Bytes()
	if err != nil {
		return nil, err
	}
	return val, nil
}

// AcquireJobLock acquires a cross-instance lock for a scheduled job
func (c *Client) AcquireJobLock(ctx context.Context, job string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("joblock:%s", job), "1", ttl).Result()
}

// ReleaseJobLock releases a scheduled job lock
func (c *Client) ReleaseJobLock(ctx context.Context, job string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("joblock:%s", job)).Err()
}
