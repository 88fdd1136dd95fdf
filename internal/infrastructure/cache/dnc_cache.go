package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dialerops/callgate-backend/internal/domain/dnc"
	"github.com/dialerops/callgate-backend/internal/domain/values"
	"github.com/dialerops/callgate-backend/internal/service/policy"
)

// dncMiss marks a confirmed absence so clean numbers don't hit the
// database on every attempt.
const dncMiss = "__miss__"

// DNCCache is a read-through cache in front of a DNC repository. Cache
// failures fall through to the repository; the admission path only
// fails when the repository itself is down.
type DNCCache struct {
	repo   policy.DNCRepository
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

func NewDNCCache(repo policy.DNCRepository, client *redis.Client, logger *zap.Logger, ttl time.Duration) *DNCCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DNCCache{
		repo:   repo,
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

func dncKey(accountID uuid.UUID, phone values.PhoneNumber) string {
	return "dnc:" + accountID.String() + ":" + phone.E164()
}

func (c *DNCCache) FindActive(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber) (*dnc.Entry, error) {
	key := dncKey(accountID, phone)

	cached, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cached == dncMiss {
			return nil, nil
		}
		var entry dnc.Entry
		if err := json.Unmarshal([]byte(cached), &entry); err == nil {
			if entry.IsActive() {
				return &entry, nil
			}
			// entry expired since it was cached
			c.invalidate(ctx, key)
		}
	case err != redis.Nil:
		c.logger.Warn("dnc cache read failed, falling through",
			zap.String("key", key), zap.Error(err))
	}

	entry, err := c.repo.FindActive(ctx, accountID, phone)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, entry)
	return entry, nil
}

// Invalidate drops the cached verdict for a destination, for use when
// suppression entries change.
func (c *DNCCache) Invalidate(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber) {
	c.invalidate(ctx, dncKey(accountID, phone))
}

func (c *DNCCache) store(ctx context.Context, key string, entry *dnc.Entry) {
	value := dncMiss
	if entry != nil {
		data, err := json.Marshal(entry)
		if err != nil {
			c.logger.Warn("dnc cache marshal failed", zap.Error(err))
			return
		}
		value = string(data)
	}
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("dnc cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *DNCCache) invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("dnc cache invalidation failed",
			zap.String("key", key), zap.Error(err))
	}
}

var _ policy.DNCRepository = (*DNCCache)(nil)
