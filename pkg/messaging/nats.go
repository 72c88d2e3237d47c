package messaging

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// Client wraps a NATS connection
type Client struct {
	conn       *nats.Conn
	subs       map[string]*nats.Subscription
	mu         sync.Mutex
	reconnects atomic.Int64
	connected  atomic.Bool
}

// Config holds NATS configuration
type Config struct {
	URL            string
	Name           string
	ReconnectWait  time.Duration
	MaxReconnects  int
	ConnectTimeout time.Duration
}

// DefaultConfig returns connection settings for url.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:            url,
		Name:           name,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
		ConnectTimeout: 5 * time.Second,
	}
}

// NewClient connects to NATS
func NewClient(cfg Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}

	client := &Client{subs: make(map[string]*nats.Subscription)}
	opts = append(opts,
		nats.ReconnectHandler(func(*nats.Conn) {
			client.reconnects.Add(1)
			client.connected.Store(true)
		}),
		nats.DisconnectErrHandler(func(*nats.Conn, error) {
			client.connected.Store(false)
		}),
	)

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	client.conn = conn
	client.connected.Store(true)
	return client, nil
}

// Publish implements Bus
func (c *Client) Publish(subject string, data []byte) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	return c.conn.Publish(subject, data)
}

// Subscribe implements Bus
func (c *Client) Subscribe(subject string, handler Handler) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.subs[subject]; exists {
		return nil, fmt.Errorf("already subscribed to %s", subject)
	}

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	c.subs[subject] = sub

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if s, ok := c.subs[subject]; ok {
			_ = s.Unsubscribe()
			delete(c.subs, subject)
		}
	}, nil
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	return c.connected.Load() && c.conn != nil && c.conn.IsConnected()
}

// Reconnects returns number of reconnections
func (c *Client) Reconnects() int64 {
	return c.reconnects.Load()
}

// Close drains subscriptions and closes the connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		_ = sub.Unsubscribe()
		delete(c.subs, subject)
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.connected.Store(false)
	return nil
}
