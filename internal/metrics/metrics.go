// Package metrics holds the Prometheus collectors of the pick service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "moneyline"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
// ⭐ SSOT: 메트릭 정의는 여기서만
type Metrics struct {
	registry *prometheus.Registry

	generateTotal    *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	settlements      *prometheus.CounterVec
	upstreamCalls    *prometheus.CounterVec
	breakerState     *prometheus.GaugeVec
	jobDuration      *prometheus.HistogramVec
	recommendLatency prometheus.Histogram
	httpRequests     *prometheus.CounterVec
	liveClients      prometheus.Gauge
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generate_total",
			Help:      "Daily pick generation attempts by final status.",
		}, []string{"status"}),
		failuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Lifecycle failures by error kind.",
		}, []string{"kind"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settled picks by outcome.",
		}, []string{"outcome"}),
		upstreamCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Outbound provider calls by upstream and result.",
		}, []string{"upstream", "result"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_open",
			Help:      "1 while the upstream circuit breaker is not closed.",
		}, []string{"upstream"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Scheduled job run time.",
			Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"job", "status"}),
		recommendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommender_latency_seconds",
			Help:      "Recommender call latency.",
			Buckets:   []float64{.05, .25, 1, 2.5, 5, 10, 20, 30},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Inbound HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_clients",
			Help:      "Connected live pick feed clients.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.generateTotal,
		m.failuresTotal,
		m.settlements,
		m.upstreamCalls,
		m.breakerState,
		m.jobDuration,
		m.recommendLatency,
		m.httpRequests,
		m.liveClients,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Generate(status string) {
	if m == nil {
		return
	}
	m.generateTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) Failure(kind string) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) Settlement(outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(outcome).Inc()
}

// Upstream records one provider call; result is ok, error or rejected
func (m *Metrics) Upstream(upstream, result string) {
	if m == nil {
		return
	}
	m.upstreamCalls.WithLabelValues(upstream, result).Inc()
}

func (m *Metrics) BreakerOpen(upstream string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.breakerState.WithLabelValues(upstream).Set(v)
}

func (m *Metrics) JobDuration(job, status string, seconds float64) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job, status).Observe(seconds)
}

func (m *Metrics) RecommendLatency(seconds float64) {
	if m == nil {
		return
	}
	m.recommendLatency.Observe(seconds)
}

func (m *Metrics) HTTPRequest(route, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
}

func (m *Metrics) LiveClients(delta float64) {
	if m == nil {
		return
	}
	m.liveClients.Add(delta)
}
