package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache Redis backend, shared by every node of a cluster
type redisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisClient builds a client without connecting, shared with the rate limiter store
func NewRedisClient(config RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})
}

// NewRedisCache connects and pings Redis
func NewRedisCache(config RedisConfig) (Cache, error) {
	client := NewRedisClient(config)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "sos:"
	}
	return &redisCache{client: client, prefix: prefix}, nil
}

func (rc *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := rc.client.Get(ctx, rc.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return b, true
}

func (rc *redisCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return rc.client.Set(ctx, rc.prefix+key, value, expiration).Err()
}

func (rc *redisCache) SetNX(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	ok, err := rc.client.SetNX(ctx, rc.prefix+key, 1, expiration).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return ok, nil
}

func (rc *redisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, rc.prefix+key).Err()
}

func (rc *redisCache) Close() error {
	return rc.client.Close()
}
