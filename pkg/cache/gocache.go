package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// goCacheWrapper go-cache backend
type goCacheWrapper struct {
	cache *gocache.Cache
	mu    sync.Mutex
}

// NewGoCache creates a go-cache backed Cache
func NewGoCache(config LocalConfig) Cache {
	return &goCacheWrapper{
		cache: gocache.New(config.DefaultExpiration, config.CleanupInterval),
	}
}

func (gc *goCacheWrapper) Get(ctx context.Context, key string) ([]byte, bool) {
	if value, found := gc.cache.Get(key); found {
		b, ok := value.([]byte)
		return b, ok
	}
	return nil, false
}

func (gc *goCacheWrapper) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = gocache.DefaultExpiration
	}
	gc.cache.Set(key, value, expiration)
	return nil
}

// SetNX uses go-cache's Add, which fails when an unexpired item exists.
func (gc *goCacheWrapper) SetNX(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	if expiration <= 0 {
		expiration = gocache.DefaultExpiration
	}
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.cache.Add(key, []byte{1}, expiration) == nil, nil
}

func (gc *goCacheWrapper) Delete(ctx context.Context, key string) error {
	gc.cache.Delete(key)
	return nil
}

func (gc *goCacheWrapper) Close() error {
	gc.cache.Flush()
	return nil
}
