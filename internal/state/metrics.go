package state

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Event-path metrics. Suppressed counts are the reason the router exists:
// they measure recomputations avoided versus an all-events broadcast.
var (
	metricEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "venueview",
		Subsystem: "state",
		Name:      "events_emitted_total",
		Help:      "State change events emitted by the store.",
	}, []string{"event"})

	metricDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "venueview",
		Subsystem: "state",
		Name:      "events_delivered_total",
		Help:      "Events delivered to subscriber callbacks.",
	}, []string{"event"})

	metricSuppressed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "venueview",
		Subsystem: "state",
		Name:      "events_suppressed_total",
		Help:      "Deliveries suppressed because the selector value was unchanged.",
	}, []string{"event"})
)
