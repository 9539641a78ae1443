package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKV stores entries as plain string keys "<prefix><namespace>:<key>".
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV wraps a client. prefix isolates several clients sharing one
// Redis database and may be empty.
func NewRedisKV(client *redis.Client, prefix string) *RedisKV {
	return &RedisKV{client: client, prefix: prefix}
}

func (r *RedisKV) redisKey(namespace, key string) string {
	return fmt.Sprintf("%s%s:%s", r.prefix, namespace, key)
}

// Get returns the stored value or ErrNotFound.
func (r *RedisKV) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.redisKey(namespace, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// Set stores the value without expiry.
func (r *RedisKV) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := r.client.Set(ctx, r.redisKey(namespace, key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes the key.
func (r *RedisKV) Delete(ctx context.Context, namespace, key string) error {
	if err := r.client.Del(ctx, r.redisKey(namespace, key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// DeleteNamespace scans and removes every key of namespace.
func (r *RedisKV) DeleteNamespace(ctx context.Context, namespace string) error {
	iter := r.client.Scan(ctx, 0, r.redisKey(namespace, "*"), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Close closes the client.
func (r *RedisKV) Close() error { return r.client.Close() }
