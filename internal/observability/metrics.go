package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	MessagesProcessed *prometheus.CounterVec
	SignalsApplied    *prometheus.CounterVec
	PhaseTransitions  *prometheus.CounterVec
	TopicsSwept       prometheus.Counter
	MutationErrors    *prometheus.CounterVec
	CacheReads        *prometheus.CounterVec
	SocialLookups     *prometheus.CounterVec
	MutationLatency   prometheus.Histogram

	stages *mutationStageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		MessagesProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_processed_total",
			Help:      "Processed messages by outcome.",
		}, []string{"outcome"}),
		SignalsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_applied_total",
			Help:      "Interest signals applied to topics by kind.",
		}, []string{"kind"}),
		PhaseTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Topic phase transitions by source and target phase.",
		}, []string{"from", "to"}),
		TopicsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "topics_swept_total",
			Help:      "Topics abandoned by the staleness sweep.",
		}),
		MutationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutation_errors_total",
			Help:      "Failed topic mutations by operation.",
		}, []string{"op"}),
		CacheReads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_reads_total",
			Help:      "Active-topic cache reads by result.",
		}, []string{"result"}),
		SocialLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "social_lookups_total",
			Help:      "Social pulse lookups by outcome.",
		}, []string{"outcome"}),
		MutationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "mutation_latency_ms",
			Help:      "Locked topic mutation latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2000},
		}),
		stages: newMutationStageWindow(256),
	}
}

func (m *Metrics) ObserveMutationLatency(d time.Duration) {
	if m == nil {
		return
	}
	ms := float64(d.Microseconds()) / 1000
	m.MutationLatency.Observe(ms)
	m.stages.Observe("mutation_total", ms)
}

func (m *Metrics) ObserveMutationStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.Observe(stage, float64(d.Microseconds())/1000)
}

func (m *Metrics) ObserveMutationIndicator(name string) {
	if m == nil {
		return
	}
	m.stages.ObserveIndicator(name)
}

func (m *Metrics) SnapshotMutationStages() MutationStageSnapshot {
	if m == nil {
		return MutationStageSnapshot{GeneratedAt: time.Now().UTC()}
	}
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
