package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lendledger"

// LendingMetrics exports loan settlement activity. It satisfies the lending
// engine's Metrics interface.
type LendingMetrics struct {
	payments    *prometheus.CounterVec
	periods     prometheus.Histogram
	declined    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	covered     prometheus.Histogram
}

type txMetrics struct {
	processed *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

var (
	lendingMetricsOnce sync.Once
	lendingRegistry    *LendingMetrics

	txMetricsOnce sync.Once
	txRegistry    *txMetrics
)

// Lending returns the lazily-initialised lending metrics registry.
func Lending() *LendingMetrics {
	lendingMetricsOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			payments: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lending",
				Name:      "payments_total",
				Help:      "Loan payments segmented by payment kind and outcome.",
			}, []string{"kind", "outcome"}),
			periods: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "lending",
				Name:      "payment_periods",
				Help:      "Scheduled periods settled by a single payment transaction.",
				Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
			}),
			declined: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lending",
				Name:      "overpayments_declined_total",
				Help:      "Overpayments left unapplied segmented by reason.",
			}, []string{"reason"}),
			transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lending",
				Name:      "transitions_total",
				Help:      "Loan lifecycle transitions segmented by action.",
			}, []string{"action"}),
			covered: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "lending",
				Name:      "default_covered",
				Help:      "Fraction of the defaulted amount owed to the vault paid from first-loss cover.",
				Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
			}),
		}
		prometheus.MustRegister(
			lendingRegistry.payments,
			lendingRegistry.periods,
			lendingRegistry.declined,
			lendingRegistry.transitions,
			lendingRegistry.covered,
		)
	})
	return lendingRegistry
}

// ObservePayment counts a payment attempt and, when it was applied, the
// periods it settled.
func (m *LendingMetrics) ObservePayment(kind, outcome string, periods uint32) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(label(kind, "unknown"), label(outcome, "unknown")).Inc()
	if outcome == "applied" {
		m.periods.Observe(float64(periods))
	}
}

// RecordOverpaymentDeclined counts an overpayment that was not applied.
func (m *LendingMetrics) RecordOverpaymentDeclined(reason string) {
	if m == nil {
		return
	}
	m.declined.WithLabelValues(label(reason, "unspecified")).Inc()
}

// RecordTransition counts an impair, unimpair or default.
func (m *LendingMetrics) RecordTransition(action string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(label(action, "unknown")).Inc()
}

// ObserveDefaultCovered records the covered share of a default.
func (m *LendingMetrics) ObserveDefaultCovered(fraction float64) {
	if m == nil {
		return
	}
	m.covered.Observe(fraction)
}

// Transactions returns the registry tracking processed ledger transactions.
func Transactions() *txMetrics {
	txMetricsOnce.Do(func() {
		txRegistry = &txMetrics{
			processed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "txn",
				Name:      "processed_total",
				Help:      "Ledger transactions segmented by kind and outcome.",
			}, []string{"kind", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "txn",
				Name:      "duration_seconds",
				Help:      "Time spent executing and committing a ledger transaction.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"kind"}),
		}
		prometheus.MustRegister(txRegistry.processed, txRegistry.latency)
	})
	return txRegistry
}

// ObserveTx records the outcome and duration of a transaction.
func (m *txMetrics) ObserveTx(kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	kind = label(kind, "unknown")
	m.processed.WithLabelValues(kind, label(outcome, "unknown")).Inc()
	m.latency.WithLabelValues(kind).Observe(duration.Seconds())
}

func label(value, fallback string) string {
	if value = strings.TrimSpace(value); value == "" {
		return fallback
	}
	return value
}
