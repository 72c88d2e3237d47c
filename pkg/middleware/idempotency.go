package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/cache"
	"github.com/gin-gonic/gin"
)

// 首个请求仍在处理时，409 响应带此头，客户端可按同一 key 继续重试
const (
	IdempotencyStatusHeader = "Idempotency-Status"
	IdempotencyInProgress   = "in-progress"
)

type IdempotencyConfig struct {
	HeaderName string        // Idempotency-Key 的请求头名
	TTL        time.Duration // 重复请求返回首次结果的窗口
	Store      cache.Cache   // 多节点部署时使用 Redis
	OnReplay   func()        // 命中重放时回调，可为空
}

type storedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware answers a retried request carrying the same
// Idempotency-Key with the first response instead of running the handler
// again. Requests without the header pass through. Keys are scoped to the
// caller identity. A retry that arrives while the first is still running gets
// 409; server errors are not remembered so the client may retry.
func IdempotencyMiddleware(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Idempotency-Key"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	store := cfg.Store
	if store == nil {
		store = cache.NewGoCache(cache.DefaultLocalConfig())
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if key == "" {
			c.Next()
			return
		}
		if claims, ok := ClaimsFrom(c); ok {
			key = claims.Role + ":" + claims.Identity() + ":" + key
		}
		ctx := c.Request.Context()
		lockKey := "idem:lock:" + key
		respKey := "idem:resp:" + key

		if replay(c, store, respKey, cfg.OnReplay) {
			return
		}

		acquired, err := store.SetNX(ctx, lockKey, cfg.TTL)
		if err != nil {
			// 存储不可用时不阻断求助请求
			c.Next()
			return
		}
		if !acquired {
			if replay(c, store, respKey, cfg.OnReplay) {
				return
			}
			c.Header(IdempotencyStatusHeader, IdempotencyInProgress)
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"code": http.StatusConflict, "msg": "request with this idempotency key is in progress"})
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		status := w.Status()
		if status >= http.StatusInternalServerError {
			_ = store.Delete(context.Background(), lockKey)
			return
		}
		b, err := json.Marshal(storedResponse{Status: status, Body: w.body.Bytes()})
		if err == nil {
			_ = store.Set(context.Background(), respKey, b, cfg.TTL)
		}
	}
}

func replay(c *gin.Context, store cache.Cache, respKey string, onReplay func()) bool {
	b, ok := store.Get(c.Request.Context(), respKey)
	if !ok {
		return false
	}
	var resp storedResponse
	if err := json.Unmarshal(b, &resp); err != nil {
		return false
	}
	if onReplay != nil {
		onReplay()
	}
	c.Header("Idempotent-Replayed", "true")
	c.Data(resp.Status, "application/json; charset=utf-8", resp.Body)
	c.Abort()
	return true
}
