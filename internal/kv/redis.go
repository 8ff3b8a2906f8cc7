// ABOUTME: Redis implementation of the Store interface using go-redis
// ABOUTME: Each namespace is one hash; keys are hash fields

package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "tatasbox:kv:"

// RedisStore implements Store on Redis hashes.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisStore connects using a redis:// URL.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	logger := slog.Default().With("component", "kv", "driver", "redis")
	logger.Info("redis store initialized", "addr", opts.Addr, "db", opts.DB)

	return &RedisStore{client: client, logger: logger}, nil
}

func redisHash(namespace string) string {
	return redisKeyPrefix + namespace
}

func (s *RedisStore) Get(ctx context.Context, namespace, key string) (string, error) {
	v, err := s.client.HGet(ctx, redisHash(namespace), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading %s/%s: %w", namespace, key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, namespace, key, value string) error {
	if err := s.client.HSet(ctx, redisHash(namespace), key, value).Err(); err != nil {
		return fmt.Errorf("writing %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, namespace, key string) error {
	if err := s.client.HDel(ctx, redisHash(namespace), key).Err(); err != nil {
		return fmt.Errorf("removing %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *RedisStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	keys, err := s.client.HKeys(ctx, redisHash(namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
