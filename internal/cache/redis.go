// Package cache memoizes expensive analysis results in Redis. The service
// keeps working with caching disabled when Redis is unreachable.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"digital.vasic.promptforge/internal/config"
)

// RedisClient wraps the go-redis client with JSON marshalling.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects with the configured address and database.
func NewRedisClient(cfg config.RedisConfig) *RedisClient {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisClient{client: rdb}
}

// newRedisClientFromRaw wraps an existing client. Used by tests with
// miniredis.
func newRedisClientFromRaw(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Set stores value as JSON under key with the given expiration.
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

// Get loads the JSON value at key into dest. The found flag is false on a
// miss.
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal([]byte(data), dest)
}

// Delete removes a key.
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

// Ping verifies the connection.
func (r *RedisClient) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (r *RedisClient) Close() error {
	return r.client.Close()
}
