package sse

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPerIdentity(t *testing.T) {
	h := NewHub(time.Minute)
	a := h.AddClient("contact:c1")
	b := h.AddClient("contact:c1")
	other := h.AddClient("contact:c2")

	require.NoError(t, h.Send("contact:c1", "new-alert", map[string]string{"alertId": "a1"}))

	for _, c := range []*Client{a, b} {
		msg := <-c.ch
		assert.Contains(t, msg, "event: new-alert\n")
		assert.Contains(t, msg, `data: {"alertId":"a1"}`)
	}
	assert.Empty(t, other.ch)

	h.RemoveClient(a.id)
	h.RemoveClient(b.id)
	err := h.Send("contact:c1", "new-alert", nil)
	assert.True(t, errors.IsKind(err, errors.KindDelivery))
}

func TestSessionCallbacks(t *testing.T) {
	h := NewHub(time.Minute)
	var opened, closed []string
	h.OnSession(
		func(identity, _ string) { opened = append(opened, identity) },
		func(identity, _ string) { closed = append(closed, identity) },
	)

	c := h.AddClient("user:u1")
	assert.Equal(t, 1, h.SessionCount("user:u1"))
	h.RemoveClient(c.id)
	h.RemoveClient(c.id)

	assert.Equal(t, []string{"user:u1"}, opened)
	assert.Equal(t, []string{"user:u1"}, closed)
	assert.Zero(t, h.SessionCount("user:u1"))
}

func TestServeStreamsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHub(time.Minute)
	connected := make(chan struct{}, 1)
	h.OnSession(func(string, string) { connected <- struct{}{} }, nil)

	r := gin.New()
	r.GET("/sse", func(c *gin.Context) { h.Serve(c, "user:u1") })
	server := httptest.NewServer(r)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/sse", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("stream not registered")
	}
	require.NoError(t, h.Send("user:u1", "status-update", map[string]string{"status": "contacted"}))

	reader := bufio.NewReader(resp.Body)
	var lines []string
	for len(lines) < 10 {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		lines = append(lines, strings.TrimRight(line, "\n"))
		if strings.HasPrefix(line, "data: ") {
			break
		}
	}
	assert.Contains(t, lines, "event: status-update")
	assert.Contains(t, lines, `data: {"status":"contacted"}`)
}
