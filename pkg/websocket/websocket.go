package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/messaging"
	"github.com/sirupsen/logrus"
)

// Message 推送给客户端的消息结构
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// SessionListener is called with the identity and connection id of a session.
type SessionListener func(identity, connID string)

// Hub 按身份管理所有WebSocket连接。一个身份可以同时拥有多个会话。
type Hub struct {
	// 连接ID到连接
	connections map[string]*Connection
	// 身份到连接集合
	identities map[string]map[string]*Connection
	// 连接计数
	connectionCount int64
	// 配置
	config *Config
	// 互斥锁
	mu sync.RWMutex
	// 上下文
	ctx    context.Context
	cancel context.CancelFunc

	listenerMu   sync.RWMutex
	onConnect    []SessionListener
	onDisconnect []SessionListener

	// 集群转发
	bus         messaging.Bus
	unsubscribe func()
}

// NewHub 创建新的Hub实例
func NewHub(config *Config) *Hub {
	if config == nil {
		config = DefaultConfig()
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	hub := &Hub{
		connections: make(map[string]*Connection),
		identities:  make(map[string]map[string]*Connection),
		config:      config,
		ctx:         ctx,
		cancel:      cancel,
	}

	go hub.run()
	return hub
}

// run 心跳检查主循环
func (h *Hub) run() {
	ticker := time.NewTicker(h.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.checkHeartbeats()
		}
	}
}

// OnConnect registers a listener fired after a session is registered.
func (h *Hub) OnConnect(fn SessionListener) {
	h.listenerMu.Lock()
	h.onConnect = append(h.onConnect, fn)
	h.listenerMu.Unlock()
}

// OnDisconnect registers a listener fired after a session is removed.
func (h *Hub) OnDisconnect(fn SessionListener) {
	h.listenerMu.Lock()
	h.onDisconnect = append(h.onDisconnect, fn)
	h.listenerMu.Unlock()
}

func (h *Hub) fire(listeners *[]SessionListener, identity, connID string) {
	h.listenerMu.RLock()
	fns := append([]SessionListener(nil), (*listeners)...)
	h.listenerMu.RUnlock()
	for _, fn := range fns {
		fn(identity, connID)
	}
}

// Register 注册连接
func (h *Hub) Register(conn *Connection) error {
	h.mu.Lock()
	// 检查最大连接数
	if atomic.LoadInt64(&h.connectionCount) >= h.config.MaxConnections {
		h.mu.Unlock()
		logrus.Warnf("达到最大连接数限制: %d", h.config.MaxConnections)
		return errors.Conflict("connection limit reached")
	}

	h.connections[conn.ID] = conn
	atomic.AddInt64(&h.connectionCount, 1)

	if h.identities[conn.Identity] == nil {
		h.identities[conn.Identity] = make(map[string]*Connection)
	}
	h.identities[conn.Identity][conn.ID] = conn
	h.mu.Unlock()

	logrus.Infof("WebSocket连接已注册: %s, 身份: %s, 当前连接数: %d",
		conn.ID, conn.Identity, atomic.LoadInt64(&h.connectionCount))
	h.fire(&h.onConnect, conn.Identity, conn.ID)
	return nil
}

// Unregister 注销连接
func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	if _, exists := h.connections[conn.ID]; !exists {
		h.mu.Unlock()
		return
	}

	delete(h.connections, conn.ID)
	atomic.AddInt64(&h.connectionCount, -1)

	if set := h.identities[conn.Identity]; set != nil {
		delete(set, conn.ID)
		if len(set) == 0 {
			delete(h.identities, conn.Identity)
		}
	}
	conn.markClosed()
	h.mu.Unlock()

	logrus.Infof("WebSocket连接已注销: %s, 当前连接数: %d",
		conn.ID, atomic.LoadInt64(&h.connectionCount))
	h.fire(&h.onDisconnect, conn.Identity, conn.ID)
}

// Send delivers one event to every session of identity on this node and, in
// cluster mode, to peers. It returns nil when at least one local session
// accepted the event, messaging.ErrRelayed when only peers were reached and a
// delivery error when nobody was.
func (h *Hub) Send(identity, event string, payload interface{}) error {
	data, err := json.Marshal(&Message{
		Type:      event,
		Data:      payload,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return errors.Wrap(err, "encode event")
	}

	delivered := h.deliverLocal(identity, data)

	if h.bus != nil {
		if err := h.publish(identity, data); err != nil {
			logrus.Warnf("集群转发失败 %s: %v", identity, err)
		} else if delivered == 0 {
			return messaging.ErrRelayed
		}
	}

	if delivered == 0 {
		return errors.Delivery("no connected session for %s", identity)
	}
	return nil
}

// deliverLocal 发送给本节点上该身份的所有会话，返回成功入队的会话数
func (h *Hub) deliverLocal(identity string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for connID, conn := range h.identities[identity] {
		if !conn.Alive() {
			continue
		}
		if h.trySend(conn, data) {
			delivered++
		} else {
			logrus.Warnf("身份 %s 的连接 %s 发送缓冲区已满", identity, connID)
		}
	}
	return delivered
}

// trySend 背压策略
func (h *Hub) trySend(conn *Connection, data []byte) bool {
	if h.config.DropOnFull {
		select {
		case conn.send <- data:
			return true
		default:
			if h.config.CloseOnBackpressure {
				conn.close()
			}
			return false
		}
	}
	// 非丢弃模式：限定等待时长
	timeout := h.config.SendTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case conn.send <- data:
		return true
	case <-timer.C:
		if h.config.CloseOnBackpressure {
			conn.close()
		}
		return false
	}
}

// checkHeartbeats 检查心跳
func (h *Hub) checkHeartbeats() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := time.Now()
	for _, conn := range h.connections {
		if now.Sub(conn.lastPing()) > h.config.ConnectionTimeout {
			logrus.Warnf("连接 %s 心跳超时，准备关闭", conn.ID)
			conn.close()
		}
	}
}

// GetConnectionCount 获取当前连接数
func (h *Hub) GetConnectionCount() int64 {
	return atomic.LoadInt64(&h.connectionCount)
}

// SessionCount 获取身份的连接数
func (h *Hub) SessionCount(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.identities[identity])
}

// Close 关闭Hub
func (h *Hub) Close() {
	h.cancel()
	if h.unsubscribe != nil {
		h.unsubscribe()
	}

	h.mu.Lock()
	for _, conn := range h.connections {
		conn.close()
	}
	h.mu.Unlock()

	logrus.Info("WebSocket Hub已关闭")
}

func (h *Hub) closed() bool {
	return h.ctx.Err() != nil
}
