package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiterConfig 限流配置
//
// Rate: "100-M"、"10-S"；Identifier: "ip" 或 "user"（按 token 身份）
// SkipPaths: 前缀匹配；AddHeaders: 是否写标准限流响应头
type RateLimiterConfig struct {
	Rate        string   `json:"rate"`
	Identifier  string   `json:"identifier"`
	SkipPaths   []string `json:"skip_paths"`
	AddHeaders  bool     `json:"add_headers"`
	DenyStatus  int      `json:"deny_status"` // 默认 429
	DenyMessage string   `json:"deny_message"`
}

// MetricsObserver 指标上报接口
type MetricsObserver interface {
	OnAllow(route string)
	OnDeny(route string)
}

// RateLimiter 面向实例的限流器
type RateLimiter struct {
	cfg      RateLimiterConfig
	limiter  *limiter.Limiter
	observer MetricsObserver
	mu       sync.RWMutex
}

// NewRateLimiter 构造限流器；store 为空时使用内存存储
func NewRateLimiter(cfg RateLimiterConfig, store limiter.Store) *RateLimiter {
	if store == nil {
		store = memory.NewStore()
	}
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		rate = limiter.Rate{Period: time.Second, Limit: 10}
	}
	return &RateLimiter{cfg: cfg, limiter: limiter.New(store, rate)}
}

// WithObserver 配置指标观察者
func (l *RateLimiter) WithObserver(observer MetricsObserver) *RateLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observer = observer
	return l
}

// Middleware 返回 Gin 中间件
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		if pathSkipped(l.cfg.SkipPaths, route) {
			c.Next()
			return
		}

		key := l.limitKey(c)
		lctx, err := l.limiter.Get(c.Request.Context(), key)
		if err != nil {
			c.Next()
			return
		}
		if l.cfg.AddHeaders {
			setStandardHeaders(c, lctx)
		}
		if lctx.Reached {
			setRetryAfter(c, time.Until(time.Unix(lctx.Reset, 0)))
			l.report(route, false)
			l.deny(c)
			return
		}

		l.report(route, true)
		c.Next()
	}
}

func (l *RateLimiter) report(route string, allowed bool) {
	l.mu.RLock()
	obs := l.observer
	l.mu.RUnlock()
	if obs == nil {
		return
	}
	if allowed {
		obs.OnAllow(route)
	} else {
		obs.OnDeny(route)
	}
}

func (l *RateLimiter) limitKey(c *gin.Context) string {
	if l.cfg.Identifier == "user" {
		if claims, ok := ClaimsFrom(c); ok {
			return claims.Role + ":" + claims.Identity()
		}
	}
	return "ip:" + strings.TrimPrefix(c.ClientIP(), "::ffff:")
}

func (l *RateLimiter) deny(c *gin.Context) {
	status := l.cfg.DenyStatus
	if status == 0 {
		status = http.StatusTooManyRequests
	}
	msg := l.cfg.DenyMessage
	if msg == "" {
		msg = "Too Many Requests"
	}
	c.AbortWithStatusJSON(status, gin.H{"code": status, "msg": msg})
}

func pathSkipped(prefixes []string, path string) bool {
	for _, pref := range prefixes {
		if pref != "" && strings.HasPrefix(path, pref) {
			return true
		}
	}
	return false
}

func setStandardHeaders(c *gin.Context, ctx limiter.Context) {
	c.Header("X-RateLimit-Limit", strconv.FormatInt(ctx.Limit, 10))
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(ctx.Remaining, 10))
	resetSec := int(time.Until(time.Unix(ctx.Reset, 0)).Seconds())
	if resetSec < 0 {
		resetSec = 0
	}
	c.Header("X-RateLimit-Reset", strconv.Itoa(resetSec))
}

func setRetryAfter(c *gin.Context, d time.Duration) {
	sec := int(d.Seconds())
	if sec < 0 {
		sec = 0
	}
	c.Header("Retry-After", strconv.Itoa(sec))
}
