package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"campusfeed/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Store is a JSON cache over Redis. A Store with a nil client never hits and
// never writes, so callers need no Redis checks of their own.
type Store struct {
	rdb  *redis.Client
	name string
}

// NewStore returns a Store labelled name in metrics.
func NewStore(rdb *redis.Client, name string) *Store {
	return &Store{rdb: rdb, name: name}
}

// Enabled reports whether the store is backed by Redis.
func (s *Store) Enabled() bool {
	return s != nil && s.rdb != nil
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) (_ bool, err error) {
	if !s.Enabled() {
		return false, nil
	}
	ctx, span := observability.StartRedisSpan(ctx, "get")
	defer func() { observability.EndSpan(span, err) }()

	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) (err error) {
	if !s.Enabled() {
		return nil
	}
	ctx, span := observability.StartRedisSpan(ctx, "set")
	defer func() { observability.EndSpan(span, err) }()

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, ttl).Err()
}

// CacheAside reads key into dest, calling fetch to fill dest on a miss and
// storing the result with ttl. Redis failures degrade to calling fetch.
func (s *Store) CacheAside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func(ctx context.Context) error) error {
	found, err := s.GetJSON(ctx, key, dest)
	if s.Enabled() {
		observability.RecordCacheLookup(s.name, found, err)
	}
	if err == nil && found {
		return nil
	}

	if err := fetch(ctx); err != nil {
		return err
	}

	_ = s.SetJSON(ctx, key, dest, ttl)
	return nil
}

// Invalidate deletes keys. Errors are returned so callers may log them; the
// entries expire on their own either way.
func (s *Store) Invalidate(ctx context.Context, keys ...string) (err error) {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	ctx, span := observability.StartRedisSpan(ctx, "del")
	defer func() { observability.EndSpan(span, err) }()

	return s.rdb.Del(ctx, keys...).Err()
}
