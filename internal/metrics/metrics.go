// Package metrics exposes Prometheus collectors for docchat.
//
// Every method is safe to call on a nil *Metrics so components can run
// without instrumentation (CLI mode, tests).
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "docchat"

// Metrics holds the application collectors.
type Metrics struct {
	registry *prometheus.Registry

	modelInvocations    *prometheus.CounterVec
	modelLatency        prometheus.Histogram
	documentsRead       prometheus.Counter
	documentsSkipped    *prometheus.CounterVec
	cacheLookups        *prometheus.CounterVec
	activeConversations prometheus.Gauge
	chatRequests        *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		modelInvocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_invocations_total",
			Help:      "Model invocations by outcome.",
		}, []string{"outcome"}),
		modelLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_invocation_seconds",
			Help:      "Latency of model invocations.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}),
		documentsRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_read_total",
			Help:      "Guidance documents successfully read and extracted.",
		}),
		documentsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_skipped_total",
			Help:      "Guidance documents skipped while assembling context.",
		}, []string{"reason"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_cache_lookups_total",
			Help:      "Extraction cache lookups by result.",
		}, []string{"result"}),
		activeConversations: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_conversations",
			Help:      "Conversations currently held in memory.",
		}),
		chatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat messages handled by channel and status.",
		}, []string{"channel", "status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveModelInvocation records one model call.
func (m *Metrics) ObserveModelInvocation(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.modelInvocations.WithLabelValues(outcome).Inc()
	m.modelLatency.Observe(elapsed.Seconds())
}

// DocumentRead counts a successfully extracted document.
func (m *Metrics) DocumentRead() {
	if m == nil {
		return
	}
	m.documentsRead.Inc()
}

// DocumentSkipped counts a document dropped from the context bundle.
func (m *Metrics) DocumentSkipped(reason string) {
	if m == nil {
		return
	}
	m.documentsSkipped.WithLabelValues(reason).Inc()
}

// CacheLookup counts an extraction cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// SetActiveConversations sets the in-memory conversation gauge.
func (m *Metrics) SetActiveConversations(n int) {
	if m == nil {
		return
	}
	m.activeConversations.Set(float64(n))
}

// ChatRequest counts a handled chat message.
func (m *Metrics) ChatRequest(channel, status string) {
	if m == nil {
		return
	}
	m.chatRequests.WithLabelValues(channel, status).Inc()
}
