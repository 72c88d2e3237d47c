package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collectors registered on their own registry. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP请求指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 业务指标
	alertsCreated     prometheus.Counter
	alertReinforced   *prometheus.CounterVec
	statusUpdates     *prometheus.CounterVec
	fanoutDeliveries  *prometheus.CounterVec
	realtimeSessions  *prometheus.GaugeVec
	alertsOpen        prometheus.Gauge
	idempotentReplays prometheus.Counter
	rateLimited       *prometheus.CounterVec
}

// NewMetrics 创建指标管理器
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		alertsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "alerts_created_total",
			Help: "Alerts created",
		}),
		alertReinforced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alert_reinforcements_total",
				Help: "Reinforcement presses, by resulting level",
			},
			[]string{"level"},
		),
		statusUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alert_status_updates_total",
				Help: "Accepted status updates, by target status",
			},
			[]string{"status"},
		),
		fanoutDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fanout_deliveries_total",
				Help: "Per-recipient fanout outcomes",
			},
			[]string{"event", "result"},
		),
		realtimeSessions: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "realtime_sessions",
				Help: "Connected real-time sessions",
			},
			[]string{"transport"},
		),
		alertsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "alerts_open",
			Help: "Alerts in active or contacted status",
		}),
		idempotentReplays: factory.NewCounter(prometheus.CounterOpts{
			Name: "idempotent_replays_total",
			Help: "Create requests answered from the idempotency guard",
		}),
		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limit_decisions_total",
				Help: "Rate limiter decisions per route",
			},
			[]string{"route", "decision"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest 记录HTTP请求
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, responseSize int64) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

func (m *Metrics) AlertCreated() {
	if m == nil {
		return
	}
	m.alertsCreated.Inc()
}

func (m *Metrics) AlertReinforced(level string) {
	if m == nil {
		return
	}
	m.alertReinforced.WithLabelValues(level).Inc()
}

func (m *Metrics) StatusUpdated(status string) {
	if m == nil {
		return
	}
	m.statusUpdates.WithLabelValues(status).Inc()
}

// Delivered counts one fanout outcome (delivered, relayed, offline).
func (m *Metrics) Delivered(event, result string) {
	if m == nil {
		return
	}
	m.fanoutDeliveries.WithLabelValues(event, result).Inc()
}

func (m *Metrics) SessionOpened(transport string) {
	if m == nil {
		return
	}
	m.realtimeSessions.WithLabelValues(transport).Inc()
}

func (m *Metrics) SessionClosed(transport string) {
	if m == nil {
		return
	}
	m.realtimeSessions.WithLabelValues(transport).Dec()
}

func (m *Metrics) SetOpenAlerts(n int64) {
	if m == nil {
		return
	}
	m.alertsOpen.Set(float64(n))
}

func (m *Metrics) IdempotentReplay() {
	if m == nil {
		return
	}
	m.idempotentReplays.Inc()
}

// OnAllow 限流放行
func (m *Metrics) OnAllow(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route, "allow").Inc()
}

// OnDeny 限流拒绝
func (m *Metrics) OnDeny(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route, "deny").Inc()
}
