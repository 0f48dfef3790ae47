package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/busgo/internal/repository"
	"github.com/redis/go-redis/v9"
)

// Store keeps JSON documents of type T under per-id keys with a sliding TTL.
// It backs booking flows, booking list views and sessions.
type Store[T any] struct {
	rdb *redis.Client
	key func(id string) string
	ttl time.Duration
}

func NewStore[T any](rdb *redis.Client, key func(id string) string, ttl time.Duration) *Store[T] {
	return &Store[T]{rdb: rdb, key: key, ttl: ttl}
}

// Load returns repository.ErrNotFound when nothing is stored under id.
func (s *Store[T]) Load(ctx context.Context, id string) (T, error) {
	const op = "redisrepo.Store.Load"

	v, ok, err := GetJSON[T](ctx, s.rdb, s.key(id))
	if err != nil {
		return v, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return v, fmt.Errorf("%s: %w", op, repository.ErrNotFound)
	}

	return v, nil
}

func (s *Store[T]) Save(ctx context.Context, id string, v T) error {
	const op = "redisrepo.Store.Save"

	if err := SetJSON(ctx, s.rdb, s.key(id), v, s.ttl); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Store[T]) Delete(ctx context.Context, id string) error {
	const op = "redisrepo.Store.Delete"

	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func GetJSON[T any](ctx context.Context, rdb *redis.Client, key string) (T, bool, error) {
	var zero T

	s, err := rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}

	var out T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return zero, false, err
	}

	return out, true, nil
}

func SetJSON(ctx context.Context, rdb *redis.Client, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return rdb.Set(ctx, key, b, ttl).Err()
}
