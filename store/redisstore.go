package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const scanBatchSize = 1000

// RedisStore maps logical tables onto a Redis key namespace
// (prefix:table:key). Per-key SET/DEL give the atomic upserts that the
// file store has to fake with a table lock, so multiple processes can
// share one backend.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore creates a [RedisStore] over the given client. An empty
// prefix defaults to "cl".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "cl"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(table, key string) string {
	return s.prefix + ":" + table + ":" + key
}

// Get implements [Store].
func (s *RedisStore) Get(ctx context.Context, table, key string) ([]byte, error) {
	data, err := s.redis.Get(ctx, s.key(table, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return data, nil
}

// Put implements [Store].
func (s *RedisStore) Put(ctx context.Context, table, key string, value []byte) error {
	if err := s.redis.Set(ctx, s.key(table, key), value, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete implements [Store].
func (s *RedisStore) Delete(ctx context.Context, table, key string) error {
	if err := s.redis.Del(ctx, s.key(table, key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Scan implements [Store]. It walks the table's key pattern with SCAN, so
// it is O(table) and intended for the engine's low-frequency paths (email
// lookup, reset-token sweeps), not per-request hot paths.
func (s *RedisStore) Scan(ctx context.Context, table string, fn func(key string, value []byte) error) error {
	pattern := s.key(table, "*")
	trim := s.key(table, "")

	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		for _, fullKey := range keys {
			data, err := s.redis.Get(ctx, fullKey).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					// Deleted between SCAN and GET.
					continue
				}
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			if err := fn(strings.TrimPrefix(fullKey, trim), data); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
