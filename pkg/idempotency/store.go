// Package idempotency is a redis-backed seen-before store used to trim
// duplicate deliveries (webhook redeliveries, kafka redelivery after a
// rebalance). It is best-effort: the durable uniqueness constraints in
// postgres remain the source of correctness.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// Key identifies a consumed kafka message.
func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

// EventKey identifies a delivered provider webhook event.
func (s *Store) EventKey(provider, eventID string) string {
	return fmt.Sprintf("idem:webhook:%s:%s", provider, eventID)
}

// Seen marks the key and reports whether it was already present.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}

	return !ok, nil
}
