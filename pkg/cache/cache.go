package cache

import (
	"context"
	"time"
)

// Cache byte-oriented cache shared by the directory cache and the idempotency guard
type Cache interface {
	// Get returns the value stored under key
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value; expiration <= 0 uses the backend default
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error

	// SetNX stores a marker only when key is absent, reporting whether it did
	SetNX(ctx context.Context, key string, expiration time.Duration) (bool, error)

	// Delete removes key
	Delete(ctx context.Context, key string) error

	// Close releases backend resources
	Close() error
}

// Config cache configuration
type Config struct {
	// "gocache", "local" or "redis"
	Type string `json:"type" env:"CACHE_TYPE"`

	Redis RedisConfig `json:"redis"`

	Local LocalConfig `json:"local"`
}

// RedisConfig Redis configuration
type RedisConfig struct {
	Addr         string        `json:"addr" env:"REDIS_ADDR"`
	Password     string        `json:"password" env:"REDIS_PASSWORD"`
	DB           int           `json:"db" env:"REDIS_DB"`
	PoolSize     int           `json:"pool_size" env:"REDIS_POOL_SIZE"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	KeyPrefix    string        `json:"key_prefix"`
}

// LocalConfig in-process cache configuration
type LocalConfig struct {
	MaxSize           int           `json:"max_size" env:"LOCAL_CACHE_MAX_SIZE"`
	DefaultExpiration time.Duration `json:"default_expiration"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// DefaultLocalConfig sizes the in-process caches for one node's directory.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		MaxSize:           10000,
		DefaultExpiration: 5 * time.Minute,
		CleanupInterval:   10 * time.Minute,
	}
}
