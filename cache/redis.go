// Package cache keeps a bounded rolling window of detection results in
// Redis so dashboards can read recent history without hitting the engine.
// The cache is optional: every failure is reported to the caller for
// logging and detection proceeds regardless.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"machine-health-engine/detector"
)

const recentKey = "mhe:results:recent"

// ResultCache stores recent detection results in Redis.
type ResultCache struct {
	client  *redis.Client
	keep    int64
	ttl     time.Duration
	timeout time.Duration
}

// Options configures a ResultCache.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Keep bounds the recent-results list length.
	Keep int
	// TTL expires individual result entries.
	TTL time.Duration
}

// New connects to Redis and verifies the connection with a ping.
func New(opts Options) (*ResultCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     20,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	keep := opts.Keep
	if keep <= 0 {
		keep = 100
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &ResultCache{
		client:  client,
		keep:    int64(keep),
		ttl:     ttl,
		timeout: 2 * time.Second,
	}, nil
}

// StoreResult pushes one detection result onto the recent list.
func (c *ResultCache) StoreResult(ctx context.Context, result *detector.DetectionResult) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	key := fmt.Sprintf("mhe:result:%d", result.Timestamp.UnixNano())

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store result: %w", err)
	}

	if err := c.client.LPush(ctx, recentKey, key).Err(); err != nil {
		return fmt.Errorf("failed to update recent list: %w", err)
	}
	c.client.LTrim(ctx, recentKey, 0, c.keep-1)

	return nil
}

// Recent returns up to count recent results, newest first. Entries that
// expired or fail to decode are skipped.
func (c *ResultCache) Recent(ctx context.Context, count int64) ([]detector.DetectionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	keys, err := c.client.LRange(ctx, recentKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent list: %w", err)
	}

	results := make([]detector.DetectionResult, 0, len(keys))
	for _, key := range keys {
		data, err := c.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}

		var result detector.DetectionResult
		if err := json.Unmarshal([]byte(data), &result); err != nil {
			continue
		}

		results = append(results, result)
	}

	return results, nil
}

// Close releases the Redis connection pool.
func (c *ResultCache) Close() error {
	return c.client.Close()
}
