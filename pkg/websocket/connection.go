package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Connection 表示一个WebSocket会话
type Connection struct {
	ID       string
	Identity string
	Conn     *websocket.Conn
	Hub      *Hub

	send      chan []byte
	mu        sync.RWMutex
	pingAt    time.Time
	alive     atomic.Bool
	closeOnce sync.Once
}

// NewConnection 创建会话；conn 为 nil 时只在内存中收发，用于测试
func NewConnection(hub *Hub, identity string, conn *websocket.Conn) *Connection {
	c := &Connection{
		ID:       "conn_" + uuid.NewString(),
		Identity: identity,
		Conn:     conn,
		Hub:      hub,
		send:     make(chan []byte, hub.config.MessageBufferSize),
		pingAt:   time.Now(),
	}
	c.alive.Store(true)
	return c
}

// Outbox 待写出的消息，测试时可直接读取
func (c *Connection) Outbox() <-chan []byte {
	return c.send
}

func (c *Connection) Alive() bool {
	return c.alive.Load()
}

func (c *Connection) lastPing() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pingAt
}

func (c *Connection) touch() {
	c.mu.Lock()
	c.pingAt = time.Now()
	c.mu.Unlock()
}

// markClosed 停止接收新消息并关闭发送队列
func (c *Connection) markClosed() {
	c.closeOnce.Do(func() {
		c.alive.Store(false)
		close(c.send)
	})
}

// close 关闭底层连接，读协程随后注销会话
func (c *Connection) close() {
	c.alive.Store(false)
	if c.Conn != nil {
		_ = c.Conn.Close()
	}
}

// newUpgrader 根据配置创建WebSocket升级器
func newUpgrader(cfg *Config) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			// 身份由 token 决定，不依赖 Origin
			return true
		},
		EnableCompression: cfg.EnableCompression,
	}
}

// ServeWebSocket 升级连接并以 identity 注册会话
func ServeWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, identity string) {
	upgrader := newUpgrader(hub.config)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.Errorf("WebSocket升级失败: %v", err)
		return
	}

	// 压缩设置
	if hub.config.EnableCompression {
		conn.EnableWriteCompression(true)
		if hub.config.CompressionLevel != 0 {
			_ = conn.SetCompressionLevel(hub.config.CompressionLevel)
		}
	}

	connection := NewConnection(hub, identity, conn)
	if err := hub.Register(connection); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}

	go connection.writePump()
	go connection.readPump()
}

// readPump 读取消息的协程；客户端只发送心跳，业务操作走HTTP
func (c *Connection) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(int64(c.Hub.config.MaxMessageSize))
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.touch()
		return c.Conn.SetReadDeadline(time.Now().Add(c.Hub.config.ConnectionTimeout))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logrus.Debugf("WebSocket读取错误: %v", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// writePump 发送消息的协程
func (c *Connection) writePump() {
	interval := c.Hub.config.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(time.Duration(float64(interval) * 0.9))
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// 每个事件单独一帧，客户端按帧解析
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Connection) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		logrus.Debugf("消息解析失败: %v", err)
		return
	}

	switch msg.Type {
	case MessageTypePing:
		c.touch()
		data, _ := json.Marshal(&Message{Type: MessageTypePong, Timestamp: time.Now().UnixMilli()})
		if c.Alive() {
			select {
			case c.send <- data:
			default:
				logrus.Warnf("连接 %s 发送缓冲区已满", c.ID)
			}
		}
	default:
		logrus.Debugf("忽略客户端消息类型: %s", msg.Type)
	}
}
