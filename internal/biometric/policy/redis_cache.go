package policy

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"biomatch/internal/biometric/models"
	id "biomatch/pkg/domain"
)

// CacheTTL bounds how stale a cached tenant policy may be. Threshold changes
// are rare and a short window keeps lookups off the backing store on the hot
// path.
const CacheTTL = 5 * time.Minute

// RedisCache is a read-through cache in front of any policy Store. Cache
// failures degrade to the inner store; a broken cache must never block a
// biometric decision.
type RedisCache struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps inner with a Redis read-through cache.
func NewRedisCache(inner Store, client *redis.Client) *RedisCache {
	return &RedisCache{inner: inner, client: client, ttl: CacheTTL}
}

func cacheKey(tenantID id.TenantID) string {
	return "biomatch:policy:" + tenantID.String()
}

func (c *RedisCache) PolicyFor(ctx context.Context, tenantID id.TenantID) (models.TenantPolicy, error) {
	key := cacheKey(tenantID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var cached models.TenantPolicy
		if unmarshalErr := json.Unmarshal(raw, &cached); unmarshalErr == nil {
			return cached, nil
		}
		// Corrupt entry; fall through and overwrite it.
	}

	p, err := c.inner.PolicyFor(ctx, tenantID)
	if err != nil {
		return models.TenantPolicy{}, err
	}

	if encoded, marshalErr := json.Marshal(p); marshalErr == nil {
		c.client.Set(ctx, key, encoded, c.ttl)
	}
	return p, nil
}

// Invalidate drops the cached policy for a tenant, e.g. after the surrounding
// system updates thresholds.
func (c *RedisCache) Invalidate(ctx context.Context, tenantID id.TenantID) error {
	return c.client.Del(ctx, cacheKey(tenantID)).Err()
}
