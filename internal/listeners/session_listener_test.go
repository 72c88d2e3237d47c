package listeners

import (
	"testing"

	"github.com/THORISO2Nnoi/GBV-sub000/pkg/metrics"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/sse"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessions(t *testing.T, m *metrics.Metrics, transport string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "realtime_sessions" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "transport" && lp.GetValue() == transport {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	return 0
}

func TestWebSocketSessionsTracked(t *testing.T) {
	m := metrics.NewMetrics()
	hub := websocket.NewHub(websocket.DefaultConfig())
	defer hub.Close()
	InitSessionListeners(hub, nil, m)

	a := websocket.NewConnection(hub, "contact:C1", nil)
	b := websocket.NewConnection(hub, "contact:C1", nil)
	require.NoError(t, hub.Register(a))
	require.NoError(t, hub.Register(b))
	assert.Equal(t, float64(2), sessions(t, m, TransportWebSocket))

	hub.Unregister(a)
	assert.Equal(t, float64(1), sessions(t, m, TransportWebSocket))
}

func TestSSESessionsTracked(t *testing.T) {
	m := metrics.NewMetrics()
	events := sse.NewHub(0)
	InitSessionListeners(nil, events, m)

	client := events.AddClient("user:U1")
	assert.Equal(t, float64(1), sessions(t, m, TransportSSE))
	assert.Equal(t, 1, events.SessionCount("user:U1"))

	events.RemoveClient("unknown")
	assert.Equal(t, float64(1), sessions(t, m, TransportSSE))

	events.RemoveClient(client.ID())
	assert.Equal(t, float64(0), sessions(t, m, TransportSSE))
}
