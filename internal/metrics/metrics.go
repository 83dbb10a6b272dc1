package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics はアプリのコレクタ一式。nilでも各メソッドは何もしない。
type Metrics struct {
	registry *prometheus.Registry

	Requests        *prometheus.CounterVec
	LatencyMS       *prometheus.HistogramVec
	GatewayCalls    *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	RealtimeClients *prometheus.GaugeVec
	ChatRequests    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cafe",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cafe",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		GatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cafe",
			Name:      "payment_gateway_calls_total",
			Help:      "Outbound payment gateway calls by outcome.",
		}, []string{"method", "operation", "outcome"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cafe",
			Name:      "event_dropped_total",
			Help:      "Events dropped because a subscriber mailbox was full.",
		}, []string{"subscriber"}),
		RealtimeClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cafe",
			Name:      "realtime_clients",
			Help:      "Connected realtime clients.",
		}, []string{"transport"}),
		ChatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cafe",
			Name:      "chat_requests_total",
			Help:      "Chat requests by intent and outcome.",
		}, []string{"intent", "outcome"}),
	}

	reg.MustRegister(
		m.Requests, m.LatencyMS, m.GatewayCalls, m.EventsDropped, m.RealtimeClients, m.ChatRequests,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler は /metrics 用
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(float64(elapsed.Milliseconds()))
}

func (m *Metrics) GatewayCall(method, operation, outcome string) {
	if m == nil {
		return
	}
	m.GatewayCalls.WithLabelValues(method, operation, outcome).Inc()
}

func (m *Metrics) EventDropped(subscriber string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(subscriber).Inc()
}

func (m *Metrics) ClientConnected(transport string) {
	if m == nil {
		return
	}
	m.RealtimeClients.WithLabelValues(transport).Inc()
}

func (m *Metrics) ClientDisconnected(transport string) {
	if m == nil {
		return
	}
	m.RealtimeClients.WithLabelValues(transport).Dec()
}

func (m *Metrics) ChatRequest(intent, outcome string) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(intent, outcome).Inc()
}
