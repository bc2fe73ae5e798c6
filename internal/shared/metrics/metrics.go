package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "legal"

// Metrics owns a private registry so tests and multiple binaries never collide
// on the global default registerer. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	outcomes          *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	rateLimitDenied   *prometheus.CounterVec
	sessionsEvicted   *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	whatsappMessages  *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orchestrator_outcomes_total",
				Help:      "Orchestrator results by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Orchestrator operation latency in seconds.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"action"},
		),
		rateLimitDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_denied_total",
				Help:      "Admissions denied by the rate limiter, by scope.",
			},
			[]string{"scope"},
		),
		sessionsEvicted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_evicted_total",
				Help:      "Sessions removed from the store, by reason.",
			},
			[]string{"reason"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		whatsappMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "whatsapp_messages_total",
				Help:      "Chat messages by direction and delivery status.",
			},
			[]string{"direction", "status"},
		),
	}
	registry.MustRegister(
		m.outcomes,
		m.operationDuration,
		m.rateLimitDenied,
		m.sessionsEvicted,
		m.httpRequests,
		m.whatsappMessages,
	)
	return m
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveOutcome counts one orchestrator result and records its latency.
func (m *Metrics) ObserveOutcome(action, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(action, outcome).Inc()
	m.operationDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// IncRateLimitDenied counts a denied admission.
func (m *Metrics) IncRateLimitDenied(scope string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.WithLabelValues(scope).Inc()
}

// IncSessionEvicted counts a removed session.
func (m *Metrics) IncSessionEvicted(reason string) {
	if m == nil {
		return
	}
	m.sessionsEvicted.WithLabelValues(reason).Inc()
}

// ObserveHTTP counts one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// IncWhatsApp counts an inbound or outbound chat message.
func (m *Metrics) IncWhatsApp(direction, status string) {
	if m == nil {
		return
	}
	m.whatsappMessages.WithLabelValues(direction, status).Inc()
}

// RegisterActiveSessions exposes a gauge read from fn at scrape time.
func (m *Metrics) RegisterActiveSessions(fn func() float64) {
	if m == nil || fn == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		},
		fn,
	))
}

// Handler exposes metrics in Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Status(404) }
	}
	return gin.WrapH(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
