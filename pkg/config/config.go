package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/cache"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/logger"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/util"
)

// config/config.go
type Config struct {
	Addr      string `env:"ADDR"`
	Mode      string `env:"MODE"`
	DBDriver  string `env:"DB_DRIVER"`
	DSN       string `env:"DSN"`
	APIPrefix string `env:"API_PREFIX"`
	Log       logger.LogConfig

	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL"`

	// 升级窗口：窗口内再次按下视为加强
	ReinforceWindow  time.Duration `env:"REINFORCE_WINDOW"`
	IdempotencyTTL   time.Duration `env:"IDEMPOTENCY_TTL"`
	StatusRateLimit  string        `env:"STATUS_RATE_LIMIT"`
	DirectoryTTL     time.Duration `env:"DIRECTORY_CACHE_TTL"`
	GaugeSchedule    string        `env:"OPEN_GAUGE_SCHEDULE"`
	SSEHeartbeat     time.Duration `env:"SSE_HEARTBEAT"`
	MetricsPath      string        `env:"METRICS_PATH"`
	Cache            cache.Config
	ClusterEnabled   bool   `env:"CLUSTER_ENABLED"`
	ClusterNodeID    string `env:"CLUSTER_NODE_ID"`
	NatsURL          string `env:"NATS_URL"`
	RateLimiterRedis bool   `env:"RATE_LIMIT_REDIS"`
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	err := util.LoadEnv(env)
	if err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}
	GlobalConfig = cfg
	return nil
}

// FromEnv reads the process environment, filling defaults for unset keys.
func FromEnv() *Config {
	local := cache.DefaultLocalConfig()
	return &Config{
		Addr:      util.GetEnvOr("ADDR", ":8080"),
		Mode:      util.GetEnvOr("MODE", "release"),
		DBDriver:  util.GetEnvOr("DB_DRIVER", "sqlite"),
		DSN:       util.GetEnv("DSN"),
		APIPrefix: util.GetEnvOr("API_PREFIX", "/api"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		JWTSecret:       util.GetEnv("JWT_SECRET"),
		TokenTTL:        util.GetDurationEnv("TOKEN_TTL", 24*time.Hour),
		ReinforceWindow: util.GetDurationEnv("REINFORCE_WINDOW", 120*time.Second),
		IdempotencyTTL:  util.GetDurationEnv("IDEMPOTENCY_TTL", 10*time.Minute),
		StatusRateLimit: util.GetEnvOr("STATUS_RATE_LIMIT", "60-M"),
		DirectoryTTL:    util.GetDurationEnv("DIRECTORY_CACHE_TTL", 30*time.Second),
		GaugeSchedule:   util.GetEnvOr("OPEN_GAUGE_SCHEDULE", "@every 30s"),
		SSEHeartbeat:    util.GetDurationEnv("SSE_HEARTBEAT", 25*time.Second),
		MetricsPath:     util.GetEnvOr("METRICS_PATH", "/metrics"),
		Cache: cache.Config{
			Type: util.GetEnvOr("CACHE_TYPE", "gocache"),
			Redis: cache.RedisConfig{
				Addr:         util.GetEnvOr("REDIS_ADDR", "localhost:6379"),
				Password:     util.GetEnv("REDIS_PASSWORD"),
				DB:           int(util.GetIntEnv("REDIS_DB")),
				PoolSize:     int(util.GetIntEnv("REDIS_POOL_SIZE")),
				DialTimeout:  util.GetDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
				ReadTimeout:  util.GetDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
				WriteTimeout: util.GetDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
				KeyPrefix:    util.GetEnv("REDIS_KEY_PREFIX"),
			},
			Local: local,
		},
		ClusterEnabled:   util.GetBoolEnv("CLUSTER_ENABLED"),
		ClusterNodeID:    util.GetEnv("CLUSTER_NODE_ID"),
		NatsURL:          util.GetEnvOr("NATS_URL", "nats://127.0.0.1:4222"),
		RateLimiterRedis: util.GetBoolEnv("RATE_LIMIT_REDIS"),
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.ReinforceWindow <= 0 {
		return fmt.Errorf("REINFORCE_WINDOW must be positive")
	}
	if c.ClusterEnabled && c.ClusterNodeID == "" {
		return fmt.Errorf("CLUSTER_NODE_ID is required when CLUSTER_ENABLED is set")
	}
	if c.RateLimiterRedis && c.Cache.Type != "redis" {
		return fmt.Errorf("RATE_LIMIT_REDIS requires CACHE_TYPE=redis")
	}
	return nil
}
