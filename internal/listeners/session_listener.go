package listeners

import (
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/logger"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/metrics"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/sse"
	"github.com/THORISO2Nnoi/GBV-sub000/pkg/websocket"

	"go.uber.org/zap"
)

const (
	TransportWebSocket = "websocket"
	TransportSSE       = "sse"
)

// InitSessionListeners hooks session lifecycle of both real-time transports
// into logging and the realtime_sessions gauge. Either hub may be nil.
func InitSessionListeners(hub *websocket.Hub, events *sse.Hub, m *metrics.Metrics) {
	if hub != nil {
		hub.OnConnect(connected(TransportWebSocket, m))
		hub.OnDisconnect(disconnected(TransportWebSocket, m))
	}
	if events != nil {
		events.OnSession(connected(TransportSSE, m), disconnected(TransportSSE, m))
	}
}

func connected(transport string, m *metrics.Metrics) func(identity, sessionID string) {
	return func(identity, sessionID string) {
		m.SessionOpened(transport)
		logger.Debug("session opened",
			zap.String("transport", transport),
			zap.String("identity", identity),
			zap.String("session_id", sessionID))
	}
}

func disconnected(transport string, m *metrics.Metrics) func(identity, sessionID string) {
	return func(identity, sessionID string) {
		m.SessionClosed(transport)
		logger.Debug("session closed",
			zap.String("transport", transport),
			zap.String("identity", identity),
			zap.String("session_id", sessionID))
	}
}
