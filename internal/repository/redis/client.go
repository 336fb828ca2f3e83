// Package redis persists client state in Redis, for kiosks and shared
// terminals whose state must survive a local wipe.
package redis

import (
	"context"
	"fmt"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/redis/go-redis/v9"
)

// Storage is a LocalStorage backed by Redis string keys
type Storage struct {
	rdb    *redis.Client
	prefix string
}

// NewStorage connects to Redis and verifies the connection
func NewStorage(ctx context.Context, cfg config.RedisConfig) (*Storage, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Storage{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

func (s *Storage) key(k string) string {
	return s.prefix + k
}

func (s *Storage) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.rdb.Close()
}
