package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gezibash/auditfwd/pkg/errors"
)

// Metrics holds the Prometheus registry and the forwarder's meters.
type Metrics struct {
	Registry          *prometheus.Registry
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec

	EntriesForwarded *prometheus.CounterVec
	BytesForwarded   *prometheus.CounterVec
	Cycles           *prometheus.CounterVec
	CursorSequence   *prometheus.GaugeVec
	BatchEntries     *prometheus.HistogramVec
}

// NewMetrics creates a private registry with every auditfwd meter registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auditfwd_operation_duration_seconds",
			Help:    "Duration of operations in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		OperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditfwd_operation_total",
			Help: "Total number of operations.",
		}, []string{"operation", "status"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditfwd_errors_total",
			Help: "Total number of errors by operation and failure kind.",
		}, []string{"operation", "type"}),
		EntriesForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditfwd_entries_forwarded_total",
			Help: "Journal entries handed to the sink.",
		}, []string{"host"}),
		BytesForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditfwd_bytes_forwarded_total",
			Help: "Message bytes handed to the sink.",
		}, []string{"host"}),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auditfwd_cycles_total",
			Help: "Polling cycles by outcome.",
		}, []string{"host", "outcome"}),
		CursorSequence: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "auditfwd_cursor_sequence",
			Help: "Sequence number of the last delivered entry.",
		}, []string{"host"}),
		BatchEntries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auditfwd_batch_entries",
			Help:    "Entries returned per fetch.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 7),
		}, []string{"host"}),
	}

	reg.MustRegister(
		m.OperationDuration, m.OperationTotal, m.ErrorsTotal,
		m.EntriesForwarded, m.BytesForwarded, m.Cycles, m.CursorSequence, m.BatchEntries,
	)
	return m
}

// RecordError counts err under its failure kind. Nil receivers and nil errors
// are ignored.
func (m *Metrics) RecordError(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(operation, errors.KindName(err)).Inc()
}
