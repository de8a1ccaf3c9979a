// Package metrics exposes Prometheus collectors for assistant turns and
// catalog searches. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry       *prometheus.Registry
	turns          *prometheus.CounterVec
	llmLatency     prometheus.Histogram
	searches       *prometheus.CounterVec
	searchLatency  prometheus.Histogram
	parseFallbacks prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avt_guide",
			Name:      "turns_total",
			Help:      "Assistant turns by outcome.",
		}, []string{"outcome"}),
		llmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "avt_guide",
			Name:      "llm_request_seconds",
			Help:      "Latency of model calls.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 45},
		}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "avt_guide",
			Name:      "keyword_searches_total",
			Help:      "Catalog keyword searches by result.",
		}, []string{"result"}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "avt_guide",
			Name:      "keyword_search_seconds",
			Help:      "Latency of single keyword searches.",
			Buckets:   prometheus.DefBuckets,
		}),
		parseFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "avt_guide",
			Name:      "degraded_replies_total",
			Help:      "Model replies that carried no usable JSON object.",
		}),
	}
	m.registry.MustRegister(m.turns, m.llmLatency, m.searches, m.searchLatency, m.parseFallbacks)
	return m
}

func (m *Metrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLLM(took time.Duration) {
	if m == nil {
		return
	}
	m.llmLatency.Observe(took.Seconds())
}

func (m *Metrics) ObserveDegraded() {
	if m == nil {
		return
	}
	m.parseFallbacks.Inc()
}

// ObserveSearch satisfies fanout.Observer.
func (m *Metrics) ObserveSearch(_ string, took time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.searches.WithLabelValues(result).Inc()
	m.searchLatency.Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
