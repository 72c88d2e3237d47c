package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/messaging"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/messaging/messagingtest"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readMessage(t *testing.T, c *Connection) Message {
	t.Helper()
	select {
	case data := <-c.Outbox():
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message")
		return Message{}
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	assert.Equal(t, int64(DefaultMaxConnections), hub.config.MaxConnections)
	assert.Equal(t, 30*time.Second, hub.config.HeartbeatInterval)
}

func TestHubSessionsPerIdentity(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	var mu sync.Mutex
	var events []string
	hub.OnConnect(func(identity, connID string) {
		mu.Lock()
		events = append(events, "connect "+identity)
		mu.Unlock()
	})
	hub.OnDisconnect(func(identity, connID string) {
		mu.Lock()
		events = append(events, "disconnect "+identity)
		mu.Unlock()
	})

	phone := NewConnection(hub, "contact:c1", nil)
	laptop := NewConnection(hub, "contact:c1", nil)
	require.NoError(t, hub.Register(phone))
	require.NoError(t, hub.Register(laptop))

	assert.Equal(t, int64(2), hub.GetConnectionCount())
	assert.Equal(t, 2, hub.SessionCount("contact:c1"))

	require.NoError(t, hub.Send("contact:c1", "new-alert", map[string]string{"alertId": "a1"}))
	assert.Equal(t, "new-alert", readMessage(t, phone).Type)
	assert.Equal(t, "new-alert", readMessage(t, laptop).Type)

	hub.Unregister(phone)
	hub.Unregister(phone)
	assert.Equal(t, 1, hub.SessionCount("contact:c1"))
	assert.False(t, phone.Alive())

	hub.Unregister(laptop)
	assert.Equal(t, int64(0), hub.GetConnectionCount())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"connect contact:c1", "connect contact:c1",
		"disconnect contact:c1", "disconnect contact:c1",
	}, events)
}

func TestHubSendOffline(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()

	err := hub.Send("contact:nobody", "new-alert", nil)
	assert.True(t, errors.IsKind(err, errors.KindDelivery))
}

func TestHubConnectionLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConnections = 1
	hub := NewHub(cfg)
	defer hub.Close()

	require.NoError(t, hub.Register(NewConnection(hub, "user:u1", nil)))
	assert.Error(t, hub.Register(NewConnection(hub, "user:u2", nil)))
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MessageBufferSize = 1
	hub := NewHub(cfg)
	defer hub.Close()

	conn := NewConnection(hub, "user:u1", nil)
	require.NoError(t, hub.Register(conn))

	require.NoError(t, hub.Send("user:u1", "status-update", nil))
	err := hub.Send("user:u1", "status-update", nil)
	assert.True(t, errors.IsKind(err, errors.KindDelivery))
}

func TestClusterRelay(t *testing.T) {
	bus := messagingtest.NewMemoryBus()

	cfgA := DefaultConfig()
	cfgA.ClusterNodeID = "node-a"
	nodeA := NewHub(cfgA)
	defer nodeA.Close()
	require.NoError(t, nodeA.EnableCluster(bus))

	cfgB := DefaultConfig()
	cfgB.ClusterNodeID = "node-b"
	nodeB := NewHub(cfgB)
	defer nodeB.Close()
	require.NoError(t, nodeB.EnableCluster(bus))

	remote := NewConnection(nodeB, "contact:c1", nil)
	require.NoError(t, nodeB.Register(remote))

	err := nodeA.Send("contact:c1", "new-alert", map[string]string{"alertId": "a1"})
	assert.ErrorIs(t, err, messaging.ErrRelayed)
	assert.Equal(t, "new-alert", readMessage(t, remote).Type)

	// a node never re-delivers its own publication
	local := NewConnection(nodeA, "contact:c2", nil)
	require.NoError(t, nodeA.Register(local))
	require.NoError(t, nodeA.Send("contact:c2", "status-update", nil))
	readMessage(t, local)
	select {
	case <-local.Outbox():
		t.Fatal("duplicate delivery")
	default:
	}
}

func TestEnableClusterRequiresNodeID(t *testing.T) {
	hub := NewHub(nil)
	defer hub.Close()
	assert.Error(t, hub.EnableCluster(messagingtest.NewMemoryBus()))
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, ValidateConfig(DefaultConfig()))
	assert.Error(t, ValidateConfig(nil))

	cfg := DefaultConfig()
	cfg.HeartbeatInterval = cfg.ConnectionTimeout
	assert.Error(t, ValidateConfig(cfg))

	cfg = DefaultConfig()
	cfg.EnableCluster = true
	assert.Error(t, ValidateConfig(cfg))
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(EnvWebSocketMaxConnections, "42")
	t.Setenv(EnvWebSocketHeartbeatInterval, "5s")
	t.Setenv(EnvWebSocketEnableCluster, "true")
	t.Setenv(EnvWebSocketClusterNodeID, "node-7")

	cfg := LoadConfigFromEnv()
	assert.Equal(t, int64(42), cfg.MaxConnections)
	assert.Equal(t, 5*time.Second, cfg.HeartbeatInterval)
	assert.True(t, cfg.EnableCluster)
	assert.Equal(t, "node-7", cfg.ClusterNodeID)
}

func TestWebSocketEndToEnd(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil)
	defer hub.Close()

	r := gin.New()
	RegisterRoutes(r, NewHandler(hub, func(c *gin.Context) (string, bool) {
		id := c.Query("identity")
		return id, id != ""
	}))
	server := httptest.NewServer(r)
	defer server.Close()

	connected := make(chan struct{}, 1)
	hub.OnConnect(func(string, string) { connected <- struct{}{} })

	url := "ws" + strings.TrimPrefix(server.URL, "http") + RouteWebSocket + "?identity=user:u1"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("session not registered")
	}

	require.NoError(t, hub.Send("user:u1", "status-update", map[string]string{"status": "contacted"}))

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	require.NoError(t, ws.ReadJSON(&msg))
	assert.Equal(t, "status-update", msg.Type)
	assert.Equal(t, "contacted", msg.Data["status"])
}

func TestWebSocketRejectsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(nil)
	defer hub.Close()

	r := gin.New()
	RegisterRoutes(r, NewHandler(hub, func(*gin.Context) (string, bool) { return "", false }))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, RouteWebSocket, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
