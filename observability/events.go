package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"cookledger/core/events"
)

type eventMetrics struct {
	published *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking committed ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			published: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cook",
				Subsystem: "events",
				Name:      "published_total",
				Help:      "Count of committed events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.published)
	})
	return eventRegistry
}

// Emit implements events.Emitter so the registry can subscribe to the bus.
func (m *eventMetrics) Emit(evt events.Event) {
	if m == nil || evt == nil {
		return
	}
	eventType := strings.TrimSpace(evt.EventType())
	if eventType == "" {
		eventType = "unknown"
	}
	m.published.WithLabelValues(eventType).Inc()
}
