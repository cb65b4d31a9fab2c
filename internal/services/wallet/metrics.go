package wallet

import (
	"time"

	"custody/internal/money"

	"github.com/prometheus/client_golang/prometheus"
)

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordOperationDuration(string, time.Duration) {}
func (n *NoopMetricsCollector) RecordOperationResult(string, string)          {}
func (n *NoopMetricsCollector) RecordCacheHit(string)                         {}
func (n *NoopMetricsCollector) RecordCacheMiss(string)                        {}
func (n *NoopMetricsCollector) RecordError(string, string)                    {}
func (n *NoopMetricsCollector) RecordRetry(string)                            {}
func (n *NoopMetricsCollector) RecordTransaction(string, money.Amount)        {}

// PrometheusMetrics exports ledger metrics to a Prometheus registry.
type PrometheusMetrics struct {
	OperationDuration *prometheus.HistogramVec
	OperationResults  *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
	Errors            *prometheus.CounterVec
	Retries           *prometheus.CounterVec
	Transactions      *prometheus.CounterVec
	TransactionVolume *prometheus.CounterVec
}

func NewPrometheusMetrics(registry *prometheus.Registry) *PrometheusMetrics {
	m := &PrometheusMetrics{
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Ledger operation duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		OperationResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_operations_total",
				Help: "Ledger operations by result.",
			},
			[]string{"operation", "result"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_cache_lookups_total",
				Help: "Cache hit/miss count.",
			},
			[]string{"cache", "status"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_errors_total",
				Help: "Ledger errors by kind.",
			},
			[]string{"operation", "kind"},
		),
		Retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_conflict_retries_total",
				Help: "Units of work re-run after a storage conflict.",
			},
			[]string{"operation"},
		),
		Transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transactions_total",
				Help: "Completed journal entries by kind.",
			},
			[]string{"kind"},
		),
		TransactionVolume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_transaction_volume_minor_units_total",
				Help: "Completed money movement in minor units.",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.OperationDuration,
		m.OperationResults,
		m.CacheLookups,
		m.Errors,
		m.Retries,
		m.Transactions,
		m.TransactionVolume,
	)
	return m
}

func (m *PrometheusMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordOperationResult(operation, result string) {
	m.OperationResults.WithLabelValues(operation, result).Inc()
}

func (m *PrometheusMetrics) RecordCacheHit(cache string) {
	m.CacheLookups.WithLabelValues(cache, "hit").Inc()
}

func (m *PrometheusMetrics) RecordCacheMiss(cache string) {
	m.CacheLookups.WithLabelValues(cache, "miss").Inc()
}

func (m *PrometheusMetrics) RecordError(operation, errType string) {
	m.Errors.WithLabelValues(operation, errType).Inc()
}

func (m *PrometheusMetrics) RecordRetry(operation string) {
	m.Retries.WithLabelValues(operation).Inc()
}

func (m *PrometheusMetrics) RecordTransaction(txType string, amount money.Amount) {
	m.Transactions.WithLabelValues(txType).Inc()
	m.TransactionVolume.WithLabelValues(txType).Add(float64(amount.Int64()))
}
