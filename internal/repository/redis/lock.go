package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Locker hands out short-lived exclusive locks (SET NX) so that the same
// draft is never submitted twice concurrently.
type Locker struct {
	rdb *redis.Client
	key func(id string) string
}

func NewLocker(rdb *redis.Client, key func(id string) string) *Locker {
	return &Locker{rdb: rdb, key: key}
}

// Acquire reports false when someone else holds the lock.
func (l *Locker) Acquire(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, l.key(id), "LOCK", ttl).Result()
}

func (l *Locker) Release(ctx context.Context, id string) error {
	return l.rdb.Del(ctx, l.key(id)).Err()
}
