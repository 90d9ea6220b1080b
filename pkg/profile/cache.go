package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultL1Size = 4096
	defaultTTL    = 5 * time.Minute
)

// CachedStore layers an in-process LRU (L1) and Redis (L2) in front of a
// Lookup. Profile reads sit on every request path, so both layers use a short
// TTL rather than explicit invalidation from the (external) onboarding system.
type CachedStore struct {
	inner Lookup
	redis *redis.Client
	l1    *lru.LRU[string, *Profile]
	ttl   time.Duration

	// Hooks for cache metrics, optional.
	OnHit  func(layer string)
	OnMiss func()
}

// NewCachedStore creates a caching wrapper around inner. The redis client is
// optional; with a nil client only the L1 cache is used.
func NewCachedStore(inner Lookup, redisClient *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CachedStore{
		inner: inner,
		redis: redisClient,
		l1:    lru.NewLRU[string, *Profile](defaultL1Size, nil, ttl),
		ttl:   ttl,
	}
}

// GetProfile resolves a profile, consulting L1, then Redis, then the backing
// store. Negative results are not cached: a missing profile is an
// authentication failure and should stay cheap to re-check.
func (c *CachedStore) GetProfile(ctx context.Context, id string) (*Profile, error) {
	if p, ok := c.l1.Get(id); ok {
		c.hit("l1")
		return p, nil
	}

	if c.redis != nil {
		data, err := c.redis.Get(ctx, cacheKey(id)).Result()
		if err == nil {
			var p Profile
			if err := json.Unmarshal([]byte(data), &p); err == nil {
				c.l1.Add(id, &p)
				c.hit("redis")
				return &p, nil
			}
			// Corrupt entry, drop it and fall through to the store.
			c.redis.Del(ctx, cacheKey(id))
		} else if err != redis.Nil {
			// Redis being down must not take authentication down with it.
			return c.fetch(ctx, id)
		}
	}

	return c.fetch(ctx, id)
}

func (c *CachedStore) fetch(ctx context.Context, id string) (*Profile, error) {
	if c.OnMiss != nil {
		c.OnMiss()
	}

	p, err := c.inner.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	c.l1.Add(id, p)
	if c.redis != nil {
		if data, err := json.Marshal(p); err == nil {
			c.redis.Set(ctx, cacheKey(id), data, c.ttl)
		}
	}

	return p, nil
}

// Invalidate drops a profile from both cache layers.
func (c *CachedStore) Invalidate(ctx context.Context, id string) error {
	c.l1.Remove(id)
	if c.redis != nil {
		return c.redis.Del(ctx, cacheKey(id)).Err()
	}
	return nil
}

func (c *CachedStore) hit(layer string) {
	if c.OnHit != nil {
		c.OnHit(layer)
	}
}

func cacheKey(id string) string {
	return fmt.Sprintf("profile:%s", id)
}
