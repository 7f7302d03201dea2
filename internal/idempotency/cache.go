package idempotency

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "tripay:settled:"

// Cache remembers settled references in redis so duplicate PAID deliveries
// can be acknowledged without touching Postgres. It is a fast path only: the
// ledger's uniqueness constraint stays authoritative, and every cache failure
// degrades to the database check.
type Cache struct {
	redis redis.Cmdable
	ttl   time.Duration
}

func NewCache(redis redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{redis: redis, ttl: ttl}
}

// Seen reports whether the reference was marked settled. Errors read as
// "not seen".
func (c *Cache) Seen(ctx context.Context, reference string) bool {
	if c == nil || c.redis == nil {
		return false
	}
	err := c.redis.Get(ctx, keyPrefix+reference).Err()
	if err == nil {
		return true
	}
	if err != redis.Nil {
		zap.L().Warn("settled-reference cache lookup failed", zap.Error(err))
	}
	return false
}

// MarkSettled records the reference after a successful settlement.
func (c *Cache) MarkSettled(ctx context.Context, reference string) {
	if c == nil || c.redis == nil {
		return
	}
	if err := c.redis.Set(ctx, keyPrefix+reference, "1", c.ttl).Err(); err != nil {
		zap.L().Warn("settled-reference cache write failed", zap.Error(err), zap.String("reference", reference))
	}
}
