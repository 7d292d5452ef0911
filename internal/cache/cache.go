// Package cache is the hot read path for price queries. Entries are
// TTL-bound and purely an optimization: losing the cache only costs a store
// round trip on the next query.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Connect builds and pings a Redis client.
func Connect(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

type PriceCache struct {
	client *redis.Client
}

func NewPriceCache(client *redis.Client) *PriceCache {
	return &PriceCache{client: client}
}

func priceKey(token, network string, ts int64) string {
	return fmt.Sprintf("price:%s:%s:%d", token, network, ts)
}

// Get returns the cached price for an exact query key. ok is false on miss.
func (c *PriceCache) Get(ctx context.Context, token, network string, ts int64) (float64, bool, error) {
	val, err := c.client.Get(ctx, priceKey(token, network, ts)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt cache entry: %w", err)
	}
	return price, true, nil
}

// Set stores a price under the exact query key with the given TTL.
func (c *PriceCache) Set(ctx context.Context, token, network string, ts int64, price float64, ttl time.Duration) error {
	return c.client.Set(ctx, priceKey(token, network, ts),
		strconv.FormatFloat(price, 'f', -1, 64), ttl).Err()
}

// Invalidate drops the entry for an exact key. The backfill worker calls
// this after rewriting a bucket so stale estimates do not outlive the
// authoritative value.
func (c *PriceCache) Invalidate(ctx context.Context, token, network string, ts int64) error {
	return c.client.Del(ctx, priceKey(token, network, ts)).Err()
}
