package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps snapshots in Redis.
type RedisStore struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

// NewRedisStore creates a store backed by redisClient. Snapshots expire after
// ttl; a ttl of 0 keeps them until deleted.
func NewRedisStore(redisClient redis.UniversalClient, ttl time.Duration) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &RedisStore{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Save stores the snapshot under key, replacing any previous one.
func (s *RedisStore) Save(ctx context.Context, key Key, snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}

	data, err := snap.Encode()
	if err != nil {
		StoreErrors.WithLabelValues("save").Inc()
		return err
	}

	if err := s.redis.Set(ctx, key.String(), data, s.ttl).Err(); err != nil {
		StoreErrors.WithLabelValues("save").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	StoreWrites.WithLabelValues(backendRedis).Inc()
	SnapshotBytes.WithLabelValues(backendRedis).Observe(float64(len(data)))
	return nil
}

// Load retrieves the snapshot stored under key.
// Returns ErrNotFound if the key doesn't exist or has expired.
func (s *RedisStore) Load(ctx context.Context, key Key) (*Snapshot, error) {
	data, err := s.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			StoreReads.WithLabelValues(backendRedis, "miss").Inc()
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		StoreErrors.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	snap, err := Decode(data)
	if err != nil {
		StoreErrors.WithLabelValues("load").Inc()
		return nil, err
	}

	StoreReads.WithLabelValues(backendRedis, "hit").Inc()
	return snap, nil
}

// Delete removes the snapshot stored under key.
func (s *RedisStore) Delete(ctx context.Context, key Key) error {
	if err := s.redis.Del(ctx, key.String()).Err(); err != nil {
		StoreErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// TTL returns the remaining lifetime of the snapshot under key.
// Returns ErrNotFound if the key doesn't exist, and 0 for snapshots without expiry.
func (s *RedisStore) TTL(ctx context.Context, key Key) (time.Duration, error) {
	ttl, err := s.redis.TTL(ctx, key.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("redis ttl: %w", err)
	}
	switch ttl {
	case -2:
		return 0, fmt.Errorf("%w: %s", ErrNotFound, key)
	case -1:
		return 0, nil
	}
	return ttl, nil
}
