package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dialerops/callgate-backend/internal/domain/values"
)

// pruneAndCount drops entries older than the window floor, then counts
// what remains. Doing both in one script keeps the count consistent
// with the prune under concurrent writers.
var pruneAndCount = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
return redis.call('ZCARD', KEYS[1])
`)

// ActivityLog keeps a per-(account, destination) sliding window of call
// timestamps in a Redis sorted set, scored by unix nanoseconds. All
// engine instances share it, so the frequency rule sees calls admitted
// anywhere in the fleet.
type ActivityLog struct {
	client    *redis.Client
	logger    *zap.Logger
	retention time.Duration
}

// NewActivityLog builds the log. Retention bounds how long entries are
// kept and should be at least the largest configured frequency window.
func NewActivityLog(client *redis.Client, logger *zap.Logger, retention time.Duration) *ActivityLog {
	if retention <= 0 {
		retention = 48 * time.Hour
	}
	return &ActivityLog{
		client:    client,
		logger:    logger,
		retention: retention,
	}
}

func activityKey(accountID uuid.UUID, phone values.PhoneNumber) string {
	return "activity:" + accountID.String() + ":" + phone.E164()
}

// Count returns how many calls were placed to the destination within
// the trailing window.
func (l *ActivityLog) Count(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber, window time.Duration) (int, error) {
	floor := time.Now().Add(-window).UnixNano()
	result, err := pruneAndCount.Run(ctx, l.client,
		[]string{activityKey(accountID, phone)},
		strconv.FormatInt(floor, 10),
	).Int()
	if err != nil {
		return 0, fmt.Errorf("counting destination activity: %w", err)
	}
	return result, nil
}

// Record appends an admitted call to the destination's history.
func (l *ActivityLog) Record(ctx context.Context, accountID uuid.UUID, phone values.PhoneNumber, at time.Time) error {
	key := activityKey(accountID, phone)
	member := strconv.FormatInt(at.UnixNano(), 10) + ":" + uuid.NewString()

	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixNano()), Member: member})
	pipe.Expire(ctx, key, l.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording destination activity: %w", err)
	}
	return nil
}
