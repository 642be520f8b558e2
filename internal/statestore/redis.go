package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"GapWatchAPI/internal/config"
	"GapWatchAPI/internal/gap"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "gapwatch:state:"

type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore connects and pings the configured server.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisStoreFromClient(rdb, cfg.KeyPrefix), nil
}

func NewRedisStoreFromClient(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) key(monitorID string) string {
	return s.prefix + monitorID
}

func (s *RedisStore) Load(ctx context.Context, monitorID string) (gap.State, error) {
	raw, err := s.rdb.Get(ctx, s.key(monitorID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return gap.State{}, nil
	}
	if err != nil {
		return gap.State{}, fmt.Errorf("failed to load state for %s: %w", monitorID, err)
	}
	return decodeState(monitorID, raw)
}

func (s *RedisStore) Save(ctx context.Context, monitorID string, st gap.State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(monitorID), raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save state for %s: %w", monitorID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, monitorID string) error {
	if err := s.rdb.Del(ctx, s.key(monitorID)).Err(); err != nil {
		return fmt.Errorf("failed to delete state for %s: %w", monitorID, err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
