package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 客户端指标管理器
//
// Every recorder is nil-safe, so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	// API 调用指标
	apiRequestsTotal   *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
	tokenRefreshTotal  *prometheus.CounterVec

	// 轮询与定位
	pollTotal         *prometheus.CounterVec
	locationPushTotal *prometheus.CounterVec

	// 业务指标
	statusTransitions *prometheus.CounterVec
	liveHandles       prometheus.Gauge
}

// NewMetrics 创建指标管理器，使用独立的 registry
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		apiRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of REST API calls by route and status",
			},
			[]string{"method", "route", "status"},
		),

		apiRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "REST API call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		tokenRefreshTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "token_refresh_total",
				Help:      "Access token refresh attempts by outcome",
			},
			[]string{"outcome"},
		),

		pollTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_total",
				Help:      "Poll cycles by loop and outcome",
			},
			[]string{"loop", "outcome"},
		),

		locationPushTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "location_push_total",
				Help:      "Live location updates by outcome",
			},
			[]string{"outcome"},
		),

		statusTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alert_status_transitions_total",
				Help:      "Observed alert status transitions",
			},
			[]string{"from", "to"},
		),

		liveHandles: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "live_handles",
				Help:      "Timers and subscriptions currently running",
			},
		),
	}
}

// ObserveAPIRequest 记录一次 API 调用；status 为 0 表示传输层失败
func (m *Metrics) ObserveAPIRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := "transport_error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	m.apiRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.apiRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) IncTokenRefresh(outcome string) {
	if m == nil {
		return
	}
	m.tokenRefreshTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncPoll(loop, outcome string) {
	if m == nil {
		return
	}
	m.pollTotal.WithLabelValues(loop, outcome).Inc()
}

func (m *Metrics) IncLocationPush(outcome string) {
	if m == nil {
		return
	}
	m.locationPushTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncStatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) SetLiveHandles(n int) {
	if m == nil {
		return
	}
	m.liveHandles.Set(float64(n))
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
