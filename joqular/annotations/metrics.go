package annotations

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricQueries       = "queries_total"
	MetricQueryTuples   = "query_tuples_total"
	MetricQuerySeconds  = "query_duration_seconds"
	MetricEntryScans    = "scanned_entries_total"
	MetricWrites        = "writes_total"
	MetricBackendErrors = "backend_errors_total"
)

// Metrics turns annotation events into Prometheus metrics.
type Metrics struct {
	Queries       *prometheus.CounterVec
	QueryTuples   prometheus.Counter
	QuerySeconds  prometheus.Histogram
	EntryScans    *prometheus.CounterVec
	Writes        *prometheus.CounterVec
	BackendErrors prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "joqular",
				Name:      MetricQueries,
				Help:      "Queries run, by outcome.",
			},
			[]string{"outcome"},
		),
		QueryTuples: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "joqular",
				Name:      MetricQueryTuples,
				Help:      "Tuples produced by queries.",
			},
		),
		QuerySeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "joqular",
				Name:      MetricQuerySeconds,
				Help:      "Time from the first pull to the last tuple.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		EntryScans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "joqular",
				Name:      MetricEntryScans,
				Help:      "Entries read by alias scans, by scan kind.",
			},
			[]string{"scan"},
		),
		Writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "joqular",
				Name:      MetricWrites,
				Help:      "Instances written, by operation.",
			},
			[]string{"op"},
		),
		BackendErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "joqular",
				Name:      MetricBackendErrors,
				Help:      "Store failures seen during queries.",
			},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Queries, m.QueryTuples, m.QuerySeconds, m.EntryScans, m.Writes, m.BackendErrors)
	}
	return m
}

// Handle updates the metrics for one event.
func (m *Metrics) Handle(event Event) {
	switch event.Name {
	case QueryCompleted:
		outcome := "success"
		if ok, _ := event.Data["success"].(bool); !ok {
			outcome = "error"
		}
		m.Queries.WithLabelValues(outcome).Inc()
		m.QueryTuples.Add(float64(intValue(event.Data["tuples.count"])))
		m.QuerySeconds.Observe(event.Latency.Seconds())
	case AliasScan:
		scan, _ := event.Data["scan"].(string)
		m.EntryScans.WithLabelValues(scan).Add(float64(intValue(event.Data["entries.scanned"])))
	case WriteInsert:
		m.Writes.WithLabelValues("insert").Inc()
	case WriteUpdate:
		m.Writes.WithLabelValues("update").Inc()
	case WriteDelete:
		m.Writes.WithLabelValues("delete").Inc()
	case ErrorBackend:
		m.BackendErrors.Inc()
	}
}

// Handler returns Handle as a Handler.
func (m *Metrics) Handler() Handler {
	return m.Handle
}
