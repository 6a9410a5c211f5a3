package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"lendledger/core/events"
)

// EventMetrics counts committed ledger events. It is an events.Emitter so it
// can subscribe to the transaction processor directly.
type EventMetrics struct {
	emitted   *prometheus.CounterVec
	transfers *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *EventMetrics
)

// Events returns the metrics registry tracking structured ledger events.
func Events() *EventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &EventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of committed ledger events segmented by type.",
			}, []string{"type"}),
			transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "events",
				Name:      "transfers_total",
				Help:      "Count of asset transfers segmented by asset and reason.",
			}, []string{"asset", "reason"}),
		}
		prometheus.MustRegister(eventRegistry.emitted, eventRegistry.transfers)
	})
	return eventRegistry
}

// Emit implements events.Emitter.
func (m *EventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	m.emitted.WithLabelValues(label(evt.EventType(), "unknown")).Inc()
	if evt.EventType() != events.TypeTransfer {
		return
	}
	if rec, ok := evt.(*events.Record); ok && rec != nil {
		m.RecordTransfer(rec.Attributes["asset"], rec.Attributes["reason"])
	}
}

// RecordTransfer increments the transfer counter for the supplied asset code.
func (m *EventMetrics) RecordTransfer(asset, reason string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(strings.ToUpper(asset))
	if normalized == "" {
		normalized = "UNKNOWN"
	}
	m.transfers.WithLabelValues(normalized, label(reason, "unspecified")).Inc()
}
