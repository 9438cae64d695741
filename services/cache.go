package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a thin JSON layer over Redis. A nil *Cache, or one built without
// a client, misses every lookup and ignores writes, so callers never branch
// on whether Redis is configured.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache connects to addr and pings it
func NewCache(ctx context.Context, addr string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		// plain host:port
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}, nil
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil
}

// GetJSON reports whether key was found and decoded into dst
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	if !c.enabled() {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("Cache read failed", "error", err, "key", key)
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Warn("Cache entry corrupt", "error", err, "key", key)
		return false
	}
	return true
}

func (c *Cache) SetJSON(ctx context.Context, key string, v any) {
	if !c.enabled() {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Cache encode failed", "error", err, "key", key)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		slog.Warn("Cache write failed", "error", err, "key", key)
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if !c.enabled() || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("Cache delete failed", "error", err, "keys", keys)
	}
}

// DeletePrefix removes every key starting with prefix
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) {
	if !c.enabled() {
		return
	}
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.Warn("Cache scan failed", "error", err, "prefix", prefix)
		return
	}
	c.Delete(ctx, keys...)
}

// Ping is used by the health check
func (c *Cache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if !c.enabled() {
		return nil
	}
	return c.client.Close()
}

// Cache keys
func studentCacheKey(studentID string) string { return "student:" + studentID }

func insightsCacheKey(studentID string) string { return "insights:" + studentID }

const matchCachePrefix = "match:"

// matchCacheKey hashes the request so equal queries share an entry
func matchCacheKey(parts ...any) string {
	raw, _ := json.Marshal(parts)
	sum := sha256.Sum256(raw)
	return matchCachePrefix + hex.EncodeToString(sum[:8])
}
