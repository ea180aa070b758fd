package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the part of *redis.Client the store needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

var _ Store = (*RedisStore)(nil)

type RedisStore struct {
	client RedisClient
	prefix string
	retry  retrier
}

func NewRedisStore(opts Options) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})
	return NewRedisStoreWithClient(client, opts)
}

func NewRedisStoreWithClient(client RedisClient, opts Options) *RedisStore {
	return &RedisStore{client: client, prefix: opts.KeyPrefix, retry: opts.retrier()}
}

func (s *RedisStore) key(k string) string { return s.prefix + k }

func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.retry.do(ctx, "load", func(ctx context.Context) error {
		var gerr error
		data, gerr = s.client.Get(ctx, s.key(key)).Bytes()
		return gerr
	})
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: redis get %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	err := s.retry.do(ctx, "save", func(ctx context.Context) error {
		return s.client.Set(ctx, s.key(key), data, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("storage: redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	err := s.retry.do(ctx, "delete", func(ctx context.Context) error {
		return s.client.Del(ctx, s.key(key)).Err()
	})
	if err != nil {
		return fmt.Errorf("storage: redis del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
