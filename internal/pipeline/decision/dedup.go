package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	redisPkg "crypto-signal-agent/pkg/redis"
)

const redisKeyAlertDedup = "alert_dedup:%d:%s"

// DedupStore remembers which (subscriber, fingerprint) pairs were alerted
// inside their cooldown window. MarkAlerted is atomic: exactly one caller
// wins for a given pair until the cooldown expires, which is what makes
// re-ingestion of the same raw record idempotent.
type DedupStore interface {
	MarkAlerted(ctx context.Context, subscriberID uint, fingerprint string, cooldown time.Duration) (bool, error)
}

// RedisDedupStore implements DedupStore on Redis SET NX with TTL, shared
// across pipeline instances.
type RedisDedupStore struct {
	client *redisPkg.Client
}

// NewRedisDedupStore creates a Redis-backed dedup store.
func NewRedisDedupStore(client *redisPkg.Client) *RedisDedupStore {
	return &RedisDedupStore{client: client}
}

// MarkAlerted records the alert time for the pair; returns false when an
// alert was already issued within the cooldown window.
func (s *RedisDedupStore) MarkAlerted(ctx context.Context, subscriberID uint, fingerprint string, cooldown time.Duration) (bool, error) {
	key := fmt.Sprintf(redisKeyAlertDedup, subscriberID, fingerprint)
	ok, err := s.client.SetNX(ctx, key, time.Now().UTC().Unix(), cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark alert dedup: %w", err)
	}
	return ok, nil
}

// MemoryDedupStore implements DedupStore in-process, used by tests and
// single-instance runs without Redis.
type MemoryDedupStore struct {
	entries *cache.Cache
}

// NewMemoryDedupStore creates an in-memory dedup store.
func NewMemoryDedupStore() *MemoryDedupStore {
	return &MemoryDedupStore{entries: cache.New(cache.NoExpiration, 5*time.Minute)}
}

// MarkAlerted records the alert time for the pair; returns false when the
// pair is still inside its cooldown window.
func (s *MemoryDedupStore) MarkAlerted(_ context.Context, subscriberID uint, fingerprint string, cooldown time.Duration) (bool, error) {
	key := fmt.Sprintf(redisKeyAlertDedup, subscriberID, fingerprint)
	if err := s.entries.Add(key, time.Now().UTC(), cooldown); err != nil {
		return false, nil
	}
	return true, nil
}
