package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Client struct {
	id       string
	identity string
	ch       chan string
	done     chan struct{}
}

func (c *Client) ID() string { return c.id }

// Hub keeps event-stream sessions grouped by identity.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]*Client
	identities map[string]map[string]*Client
	interval   time.Duration
	retryMs    int
	seq        atomic.Int64

	onConnect    func(identity, clientID string)
	onDisconnect func(identity, clientID string)
}

func NewHub(interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Hub{
		clients:    make(map[string]*Client),
		identities: make(map[string]map[string]*Client),
		interval:   interval,
		retryMs:    5000,
	}
}

// OnSession sets callbacks for session open/close. Set before serving.
func (h *Hub) OnSession(connect, disconnect func(identity, clientID string)) {
	h.onConnect = connect
	h.onDisconnect = disconnect
}

func (h *Hub) AddClient(identity string) *Client {
	c := &Client{id: uuid.NewString(), identity: identity, ch: make(chan string, 64), done: make(chan struct{})}
	h.mu.Lock()
	h.clients[c.id] = c
	if h.identities[identity] == nil {
		h.identities[identity] = make(map[string]*Client)
	}
	h.identities[identity][c.id] = c
	h.mu.Unlock()

	if h.onConnect != nil {
		h.onConnect(identity, c.id)
	}
	return c
}

func (h *Hub) RemoveClient(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		close(c.done)
		delete(h.clients, id)
		if set := h.identities[c.identity]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(h.identities, c.identity)
			}
		}
	}
	h.mu.Unlock()

	if ok && h.onDisconnect != nil {
		h.onDisconnect(c.identity, id)
	}
}

// Send queues a named event for every session of identity.
func (h *Hub) Send(identity, event string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	msg := formatEvent(h.seq.Add(1), event, string(b))

	delivered := 0
	h.mu.RLock()
	for _, c := range h.identities[identity] {
		select {
		case c.ch <- msg:
			delivered++
		default:
		}
	}
	h.mu.RUnlock()

	if delivered == 0 {
		return errors.Delivery("no event stream for %s", identity)
	}
	return nil
}

func (h *Hub) SessionCount(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.identities[identity])
}

func formatEvent(id int64, event, data string) string {
	return fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", id, event, data)
}

func (h *Hub) Serve(c *gin.Context, identity string) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	fmt.Fprintf(c.Writer, "retry: %d\n\n", h.retryMs)
	flusher.Flush()

	client := h.AddClient(identity)
	defer h.RemoveClient(client.id)

	ping := time.NewTicker(h.interval)
	defer ping.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprintf(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case msg := <-client.ch:
			_, _ = c.Writer.Write([]byte(msg))
			flusher.Flush()
		}
	}
}
