package vitals

import (
	"context"
	"time"

	"github.com/carelink/platform/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

// Detector is the fast path of the duplicate index: a SET NX reservation per
// canonical tuple. It is a cache in front of the vitals table's unique index,
// which remains the durable serialization point, so a Redis outage degrades
// to the database conflict check instead of failing ingestion.
type Detector struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDetector(client *redis.Client, ttl time.Duration) *Detector {
	return &Detector{client: client, ttl: ttl}
}

// Reserve atomically claims the key. A false result means another submission
// already holds it, which is a hint only: a crash can leave a key with no
// persisted row behind it, so callers confirm against the unique index.
func (d *Detector) Reserve(ctx context.Context, key string) (bool, error) {
	if d == nil || d.client == nil {
		return true, nil
	}

	ok, err := d.client.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		logger.Log.WithError(err).Warn("dedup reservation unavailable, falling back to database index")
		return true, nil
	}
	return ok, nil
}

// Release drops a reservation after the item failed downstream of the
// duplicate check, so a retry is not misreported as a duplicate.
func (d *Detector) Release(ctx context.Context, key string) {
	if d == nil || d.client == nil {
		return
	}
	if err := d.client.Del(ctx, key).Err(); err != nil {
		logger.Log.WithError(err).Warn("failed to release dedup reservation")
	}
}
