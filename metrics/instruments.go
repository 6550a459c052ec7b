package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DeliveriesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_created_total",
		Help: "The total number of delivery records created per event type",
	}, []string{"event_type"})

	DeliveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_delivery_attempts_total",
		Help: "The total number of delivery attempts by outcome",
	}, []string{"outcome"})

	DeliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhook_delivery_duration_seconds",
		Help:    "Time taken by a single delivery attempt",
		Buckets: prometheus.DefBuckets,
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webhook_queue_depth",
		Help: "Number of deliveries currently queued (pending, retrying or claimed)",
	})

	Escalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_escalations_total",
		Help: "The total number of permanent-failure escalations raised",
	})

	TerminalPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_terminal_purged_total",
		Help: "The total number of terminal delivery records removed by housekeeping",
	})
)

// Attempt outcome labels
const (
	OutcomeSent    = "sent"
	OutcomeRetried = "retried"
	OutcomeFailed  = "failed"
)
