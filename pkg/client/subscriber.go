package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/internal/models"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/gorilla/websocket"
)

// Event is one frame received on the real-time channel.
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func (e Event) NewAlert() (models.NewAlertEvent, error) {
	var out models.NewAlertEvent
	if e.Type != models.EventNewAlert {
		return out, errors.Validation("event %s is not %s", e.Type, models.EventNewAlert)
	}
	return out, json.Unmarshal(e.Data, &out)
}

func (e Event) StatusUpdate() (models.StatusUpdateEvent, error) {
	var out models.StatusUpdateEvent
	if e.Type != models.EventStatusUpdate {
		return out, errors.Validation("event %s is not %s", e.Type, models.EventStatusUpdate)
	}
	return out, json.Unmarshal(e.Data, &out)
}

// Subscriber joins the caller's channel over websocket.
type Subscriber struct {
	url    string
	dialer *websocket.Dialer
	ping   time.Duration
}

// NewSubscriber derives the websocket URL from the HTTP base URL.
func NewSubscriber(baseURL, token string) *Subscriber {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return &Subscriber{
		url:    u + "/ws?token=" + url.QueryEscape(token),
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		ping:   20 * time.Second,
	}
}

// Run delivers events to handle until ctx ends or the connection drops.
// Heartbeat frames are not passed on.
func (s *Subscriber) Run(ctx context.Context, handle func(Event)) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		if resp != nil {
			return statusError(resp.StatusCode, "websocket handshake rejected")
		}
		return errors.Wrap(err, "dial websocket")
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(s.ping)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-ticker.C:
				msg, _ := json.Marshal(Event{Type: "ping", Timestamp: time.Now().UnixMilli()})
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "read websocket")
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		if ev.Type == "pong" || ev.Type == "ping" {
			continue
		}
		handle(ev)
	}
}
