// Package redisclient provides the cross-process per-booking lock used to
// serialize installment mutations when more than one instance of the service
// runs against the same database.
package redisclient

import (
	"context"
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

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireBookingLock takes the per-booking lock. Returns false when another
// process holds it. The TTL bounds lock lifetime if the holder dies.
func (c *Client) AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, lockKey(bookingID), "1", ttl).Result()
}

// ReleaseBookingLock releases the per-booking lock.
func (c *Client) ReleaseBookingLock(ctx context.Context, bookingID string) error {
	return c.rdb.Del(ctx, lockKey(bookingID)).Err()
}

// SetIdempotencyKey maps an idempotency key to the booking it produced.
func (c *Client) SetIdempotencyKey(ctx context.Context, key, bookingID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), bookingID, ttl).Err()
}

// GetIdempotencyKey returns the booking a key was already used for, if any.
func (c *Client) GetIdempotencyKey(ctx context.Context, key string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:booking:%s", key)
}

func lockKey(bookingID string) string {
	return fmt.Sprintf("lock:booking:%s", bookingID)
}
