package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// setupTestRedis connects to a local Redis for unit tests and skips when
// none is reachable. The integration suite runs against testcontainers.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use a separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestNewRedisStore_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewRedisStore should panic with nil redis client")
		}
	}()
	NewRedisStore(nil, 0)
}

func TestNewRedisStore_NegativeTTL(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	s := NewRedisStore(client, -time.Minute)
	if s.ttl != 0 {
		t.Errorf("ttl = %v, want 0", s.ttl)
	}
}

func TestRedisStore_SaveAndLoad(t *testing.T) {
	s := NewRedisStore(setupTestRedis(t), 0)
	ctx := context.Background()

	snap := testSnapshot()
	key := snap.Key()

	if err := s.Save(ctx, key, snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load(ctx, key)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.Count != snap.Count {
		t.Errorf("Count = %d, want %d", got.Count, snap.Count)
	}
	if got.Records[0]["full_name"] != "org/a" {
		t.Errorf("first record = %v", got.Records[0])
	}

	ttl, err := s.TTL(ctx, key)
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl != 0 {
		t.Errorf("TTL() = %v, want 0 for snapshots without expiry", ttl)
	}
}

func TestRedisStore_TTL(t *testing.T) {
	s := NewRedisStore(setupTestRedis(t), time.Hour)
	ctx := context.Background()

	snap := testSnapshot()
	if err := s.Save(ctx, snap.Key(), snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	ttl, err := s.TTL(ctx, snap.Key())
	if err != nil {
		t.Fatalf("TTL() error = %v", err)
	}
	if ttl <= 59*time.Minute || ttl > time.Hour {
		t.Errorf("TTL() = %v, want about 1h", ttl)
	}
}

func TestRedisStore_LoadMissing(t *testing.T) {
	s := NewRedisStore(setupTestRedis(t), 0)

	_, err := s.Load(context.Background(), Key{Endpoint: "/nothing"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() error = %v, want ErrNotFound", err)
	}

	_, err = s.TTL(context.Background(), Key{Endpoint: "/nothing"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("TTL() error = %v, want ErrNotFound", err)
	}
}

func TestRedisStore_Delete(t *testing.T) {
	s := NewRedisStore(setupTestRedis(t), 0)
	ctx := context.Background()

	snap := testSnapshot()
	if err := s.Save(ctx, snap.Key(), snap); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Delete(ctx, snap.Key()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Load(ctx, snap.Key()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load() after Delete error = %v, want ErrNotFound", err)
	}
}

func TestRedisStore_Corrupted(t *testing.T) {
	client := setupTestRedis(t)
	s := NewRedisStore(client, 0)
	ctx := context.Background()

	key := Key{Endpoint: "/broken"}
	if err := client.Set(ctx, key.String(), "not json", 0).Err(); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := s.Load(ctx, key); !errors.Is(err, ErrInvalidSnapshot) {
		t.Errorf("Load() error = %v, want ErrInvalidSnapshot", err)
	}
}

func TestRedisStore_SaveNil(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer client.Close()

	if err := NewRedisStore(client, 0).Save(context.Background(), Key{}, nil); err == nil {
		t.Error("Save(nil) expected error")
	}
}
