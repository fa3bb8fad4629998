package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subhub_events_total",
			Help: "Provider events by kind and routing outcome",
		},
		[]string{"kind", "outcome"}, // processed|ignored|rejected|error
	)

	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subhub_deliveries_total",
			Help: "Destination deliveries by result",
		},
		[]string{"destination", "result"}, // delivered|failed|skipped
	)

	SweepEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subhub_sweep_events_total",
			Help: "Events seen by the reconciliation sweep",
		},
		[]string{"result"}, // replayed|skipped|failed
	)

	DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subhub_delivery_duration_seconds",
			Help:    "Destination adapter call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"destination"},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		EventsTotal,
		DeliveriesTotal,
		SweepEventsTotal,
		DeliveryDuration,
	)
}
