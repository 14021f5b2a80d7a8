package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion and analytics paths.
type Metrics struct {
	EventsIngested   *prometheus.CounterVec // labels: kind={weather,social}
	DuplicateEvents  *prometheus.CounterVec // labels: kind={weather,social}
	EventsDropped    *prometheus.CounterVec // labels: kind={weather,social}
	ValidationErrors prometheus.Counter
	MessagesConsumed prometheus.Counter
	CacheCycles      prometheus.Counter

	StoredEvents       *prometheus.GaugeVec // labels: kind={weather,social}
	ConsumerRunning    prometheus.Gauge
	EscalationSeverity prometheus.Gauge // 0=none, 1=high, 2=critical
	HotspotCount       prometheus.Gauge

	AggregationDuration prometheus.Histogram
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		EventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crisis_intel",
			Name:      "events_ingested_total",
			Help:      "Total events accepted into the store, by kind.",
		}, []string{"kind"}),
		DuplicateEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crisis_intel",
			Name:      "duplicate_events_total",
			Help:      "Total redelivered events skipped by ID, by kind.",
		}, []string{"kind"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crisis_intel",
			Name:      "events_dropped_total",
			Help:      "Total oldest events evicted to stay within capacity, by kind.",
		}, []string{"kind"}),
		ValidationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crisis_intel",
			Name:      "validation_errors_total",
			Help:      "Total incoming events rejected by validation.",
		}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crisis_intel",
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the source topics.",
		}),
		CacheCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crisis_intel",
			Name:      "cache_cycles_total",
			Help:      "Total store cycles that trimmed the event buffers.",
		}),
		StoredEvents: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "crisis_intel",
			Name:      "stored_events",
			Help:      "Events currently held in the store, by kind.",
		}, []string{"kind"}),
		ConsumerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crisis_intel",
			Name:      "consumer_running",
			Help:      "1 when the Kafka consumer loop is active, 0 when shut down.",
		}),
		EscalationSeverity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crisis_intel",
			Name:      "escalation_severity",
			Help:      "Current escalation severity: 0 none, 1 high, 2 critical.",
		}),
		HotspotCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "crisis_intel",
			Name:      "hotspot_count",
			Help:      "Grid cells with activity in the last aggregation.",
		}),
		AggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crisis_intel",
			Name:      "aggregation_duration_seconds",
			Help:      "Duration of a snapshot-and-aggregate pass.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}

	prometheus.MustRegister(
		m.EventsIngested,
		m.DuplicateEvents,
		m.EventsDropped,
		m.ValidationErrors,
		m.MessagesConsumed,
		m.CacheCycles,
		m.StoredEvents,
		m.ConsumerRunning,
		m.EscalationSeverity,
		m.HotspotCount,
		m.AggregationDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics with unregistered collectors to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		EventsIngested:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "crisis_intel", Name: "events_ingested_total"}, []string{"kind"}),
		DuplicateEvents:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "crisis_intel", Name: "duplicate_events_total"}, []string{"kind"}),
		EventsDropped:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "crisis_intel", Name: "events_dropped_total"}, []string{"kind"}),
		ValidationErrors:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "crisis_intel", Name: "validation_errors_total"}),
		MessagesConsumed:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "crisis_intel", Name: "messages_consumed_total"}),
		CacheCycles:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "crisis_intel", Name: "cache_cycles_total"}),
		StoredEvents:        prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: "crisis_intel", Name: "stored_events"}, []string{"kind"}),
		ConsumerRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "crisis_intel", Name: "consumer_running"}),
		EscalationSeverity:  prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "crisis_intel", Name: "escalation_severity"}),
		HotspotCount:        prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "crisis_intel", Name: "hotspot_count"}),
		AggregationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "crisis_intel", Name: "aggregation_duration_seconds"}),
	}
}
