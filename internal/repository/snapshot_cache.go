package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"tryout_backend/internal/engine"

	"github.com/go-redis/redis/v8"
)

// SnapshotCache keeps the latest attempt snapshot in Redis as a hot recovery
// layer in front of MySQL. Reads on resume hit the cache first; a miss falls
// back to the attempt row. Cache failures are never fatal, the row is the
// source of truth.
type SnapshotCache struct {
	RDB *redis.Client
	TTL time.Duration
}

func NewSnapshotCache(rdb *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SnapshotCache{RDB: rdb, TTL: ttl}
}

func snapshotKey(attemptID uint) string {
	return fmt.Sprintf("tryout:attempt:%d:snapshot", attemptID)
}

func (c *SnapshotCache) Put(ctx context.Context, snap engine.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, snapshotKey(snap.AttemptID), payload, c.TTL).Err()
}

// Get returns the cached snapshot, or (nil, nil) on a miss.
func (c *SnapshotCache) Get(ctx context.Context, attemptID uint) (*engine.Snapshot, error) {
	payload, err := c.RDB.Get(ctx, snapshotKey(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap engine.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *SnapshotCache) Delete(ctx context.Context, attemptID uint) error {
	return c.RDB.Del(ctx, snapshotKey(attemptID)).Err()
}
