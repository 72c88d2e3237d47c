package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstancesDoNotCollide(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.AlertCreated()
	a.AlertCreated()
	b.AlertCreated()

	assert.Equal(t, float64(2), testutil.ToFloat64(a.alertsCreated))
	assert.Equal(t, float64(1), testutil.ToFloat64(b.alertsCreated))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AlertCreated()
		m.Delivered("new-alert", "offline")
		m.SetOpenAlerts(3)
		m.SessionOpened("ws")
	})
}

func TestMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()
	m.Delivered("new-alert", "delivered")

	r := gin.New()
	r.Use(Middleware(m))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `http_requests_total{method="GET",path="/ping",status="200"} 1`))
	assert.True(t, strings.Contains(body, `fanout_deliveries_total{event="new-alert",result="delivered"} 1`))
}

func TestRateLimitDecisions(t *testing.T) {
	m := NewMetrics()
	m.OnAllow("/api/alerts")
	m.OnAllow("/api/alerts")
	m.OnDeny("/api/alerts")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.rateLimited.WithLabelValues("/api/alerts", "allow")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rateLimited.WithLabelValues("/api/alerts", "deny")))
}
