package cache

import (
	"fmt"
	"strings"
)

// NewCache creates the configured backend
func NewCache(config Config) (Cache, error) {
	if config.Local.MaxSize <= 0 || config.Local.DefaultExpiration <= 0 {
		def := DefaultLocalConfig()
		if config.Local.MaxSize <= 0 {
			config.Local.MaxSize = def.MaxSize
		}
		if config.Local.DefaultExpiration <= 0 {
			config.Local.DefaultExpiration = def.DefaultExpiration
		}
		if config.Local.CleanupInterval <= 0 {
			config.Local.CleanupInterval = def.CleanupInterval
		}
	}

	switch strings.ToLower(config.Type) {
	case "", "gocache":
		return NewGoCache(config.Local), nil
	case "local":
		return NewLocalCache(config.Local), nil
	case "redis":
		return NewRedisCache(config.Redis)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}
