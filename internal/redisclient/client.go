package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
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

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetJSON loads a JSON value into dest. Returns false without error on
// a cache miss.
func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached value %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores a JSON-encoded value with a TTL
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", key, err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// GetDealEntry loads a cached deal list payload for a limit key
func (c *Client) GetDealEntry(ctx context.Context, limit int, dest interface{}) (bool, error) {
	return c.GetJSON(ctx, dealKey(limit), dest)
}

// SetDealEntry stores a deal list payload for a limit key
func (c *Client) SetDealEntry(ctx context.Context, limit int, value interface{}, ttl time.Duration) error {
	return c.SetJSON(ctx, dealKey(limit), value, ttl)
}

// GetRate loads a cached exchange rate, false on miss
func (c *Client) GetRate(ctx context.Context, from, to string) (float64, bool, error) {
	val, err := c.rdb.Get(ctx, rateKey(from, to)).Float64()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return val, true, nil
}

// SetRate caches an exchange rate with a TTL
func (c *Client) SetRate(ctx context.Context, from, to string, rate float64, ttl time.Duration) error {
	return c.rdb.Set(ctx, rateKey(from, to), rate, ttl).Err()
}

// AcquireLock acquires a distributed lock; used to collapse concurrent
// cache refreshes across processes
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

func dealKey(limit int) string {
	return fmt.Sprintf("deals:min-price:%d", limit)
}

func rateKey(from, to string) string {
	return fmt.Sprintf("rates:%s:%s", from, to)
}
