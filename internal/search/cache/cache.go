// Package cache keeps recently served hit pages in Redis. Only the
// backend's answer is cached; stock and price are always read fresh.
package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vdestor_backend/internal/search/domain"

	"github.com/redis/go-redis/v9"
)

// HitCache stores hit sets per backend. A nil *HitCache is a valid cache
// that never hits.
type HitCache struct {
	client  redis.UniversalClient
	ttl     time.Duration
	version string
}

// New creates a cache. Keys include version so a configuration change
// never serves pages ranked under the old settings.
func New(client redis.UniversalClient, ttl time.Duration, version string) *HitCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &HitCache{client: client, ttl: ttl, version: version}
}

// Key identifies one page of one query on one backend.
func (c *HitCache) Key(source domain.Source, query string, offset, limit int) string {
	sum := sha1.Sum([]byte(query))
	return fmt.Sprintf("search:v%s:%s:%s:%d:%d", c.version, source, hex.EncodeToString(sum[:]), offset, limit)
}

// Get returns the cached set and whether it was found. Redis errors count
// as misses.
func (c *HitCache) Get(ctx context.Context, source domain.Source, query string, offset, limit int) (domain.HitSet, bool) {
	if c == nil {
		return domain.HitSet{}, false
	}

	raw, err := c.client.Get(ctx, c.Key(source, query, offset, limit)).Bytes()
	if err != nil {
		return domain.HitSet{}, false
	}

	var set domain.HitSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return domain.HitSet{}, false
	}
	return set, true
}

// Set stores the set under the configured TTL.
func (c *HitCache) Set(ctx context.Context, source domain.Source, query string, offset, limit int, set domain.HitSet) error {
	if c == nil {
		return nil
	}

	raw, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode hit set: %w", err)
	}
	if err := c.client.Set(ctx, c.Key(source, query, offset, limit), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache hit set: %w", err)
	}
	return nil
}

// Ping reports whether Redis answers. A disabled cache is reported as such.
func (c *HitCache) Ping(ctx context.Context) error {
	if c == nil {
		return ErrDisabled
	}
	return c.client.Ping(ctx).Err()
}

// ErrDisabled is returned by Ping on a nil cache.
var ErrDisabled = errors.New("cache disabled")
