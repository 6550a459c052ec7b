package metrics

import (
	"context"
	"time"
)

// Metrics represents the current state of the delivery engine.
type Metrics struct {
	// QueueDepth is the number of deliveries waiting for an attempt
	// (pending, retrying or currently claimed)
	QueueDepth int64 `json:"queue_depth"`

	// StatusCounts maps status name to count of deliveries in that status
	StatusCounts map[string]int64 `json:"status_counts"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// Collector defines the interface for collecting metrics from the engine.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Metrics, error)

	// GetQueueDepth returns the number of queued deliveries
	GetQueueDepth(ctx context.Context) (int64, error)

	// GetStatusCounts returns the count of deliveries by status
	GetStatusCounts(ctx context.Context) (map[string]int64, error)
}
