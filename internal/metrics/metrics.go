// Package metrics holds the Prometheus collectors of the analysis engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	CacheLookups      *prometheus.CounterVec
	ProviderFallbacks *prometheus.CounterVec
	Warnings          *prometheus.CounterVec
	BlocksIndexed     prometheus.Counter
	EntitiesSkipped   prometheus.Counter
	RunDuration       prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codesense_description_cache_lookups_total",
			Help: "Description cache lookups by result",
		}, []string{"result"}),
		ProviderFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codesense_provider_fallbacks_total",
			Help: "Provider calls that degraded to their fallback",
		}, []string{"provider"}),
		Warnings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codesense_similarity_warnings_total",
			Help: "Similarity matches by classification",
		}, []string{"classification"}),
		BlocksIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "codesense_blocks_indexed_total",
			Help: "Code blocks written to the vector store",
		}),
		EntitiesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "codesense_entities_skipped_total",
			Help: "Malformed entities skipped at ingestion",
		}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "codesense_analysis_duration_seconds",
			Help:    "Duration of analysis runs",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
