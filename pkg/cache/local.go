package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// localCache size-bounded LRU with a single TTL; per-call expirations are ignored
type localCache struct {
	lru *expirable.LRU[string, []byte]
	mu  sync.Mutex
}

// NewLocalCache creates an LRU backed Cache
func NewLocalCache(config LocalConfig) Cache {
	return &localCache{
		lru: expirable.NewLRU[string, []byte](config.MaxSize, nil, config.DefaultExpiration),
	}
}

func (lc *localCache) Get(ctx context.Context, key string) ([]byte, bool) {
	return lc.lru.Get(key)
}

func (lc *localCache) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	lc.lru.Add(key, value)
	return nil
}

func (lc *localCache) SetNX(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.lru.Contains(key) {
		return false, nil
	}
	lc.lru.Add(key, []byte{1})
	return true, nil
}

func (lc *localCache) Delete(ctx context.Context, key string) error {
	lc.lru.Remove(key)
	return nil
}

func (lc *localCache) Close() error {
	lc.lru.Purge()
	return nil
}
