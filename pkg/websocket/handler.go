package websocket

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// IdentityFunc resolves the channel identity of an authenticated request.
type IdentityFunc func(c *gin.Context) (string, bool)

// Handler WebSocket HTTP处理器
type Handler struct {
	hub        *Hub
	identityOf IdentityFunc
}

// NewHandler 创建新的WebSocket处理器
func NewHandler(hub *Hub, identityOf IdentityFunc) *Handler {
	return &Handler{hub: hub, identityOf: identityOf}
}

// RegisterRoutes 注册路由，auth 在升级前执行
func RegisterRoutes(r gin.IRoutes, handler *Handler, auth ...gin.HandlerFunc) {
	r.GET(RouteWebSocket, append(auth, handler.HandleWebSocket)...)
	r.GET(RouteWebSocketStats, handler.GetStats)
	r.GET(RouteWebSocketHealth, handler.HealthCheck)
}

// HandleWebSocket 处理WebSocket连接请求
func (h *Handler) HandleWebSocket(c *gin.Context) {
	identity, ok := h.identityOf(c)
	if !ok || identity == "" {
		logrus.Warn("未认证的WebSocket请求")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	ServeWebSocket(h.hub, c.Writer, c.Request, identity)
}

// GetStats 获取WebSocket统计信息
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"total_connections":  h.hub.GetConnectionCount(),
		"max_connections":    h.hub.config.MaxConnections,
		"heartbeat_interval": h.hub.config.HeartbeatInterval.String(),
		"connection_timeout": h.hub.config.ConnectionTimeout.String(),
		"enable_cluster":     h.hub.bus != nil,
		"cluster_node_id":    h.hub.config.ClusterNodeID,
	})
}

// HealthCheck WebSocket健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	if h.hub.closed() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  "hub closed",
		})
		return
	}

	total := h.hub.GetConnectionCount()
	max := h.hub.config.MaxConnections

	status := "healthy"
	if total >= max*9/10 { // 90%以上认为警告
		status = "warning"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":            status,
		"total_connections": total,
		"max_connections":   max,
		"timestamp":         time.Now().Unix(),
	})
}
