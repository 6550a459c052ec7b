package webhook

import (
	"context"
	"time"
)

/* Small, focused interfaces: behavior, not things.
 * Context is always the first parameter in functions that do I/O.
 */

// SubscriberReader provides read operations for subscribers
type SubscriberReader interface {
	GetSubscriber(ctx context.Context, id string) (Subscriber, error)
	ListSubscribers(ctx context.Context) ([]Subscriber, error)
}

// SubscriberWriter provides write operations for subscribers
type SubscriberWriter interface {
	StoreSubscriber(ctx context.Context, sub Subscriber) error
	UpdateSubscriber(ctx context.Context, sub Subscriber) error
	DeleteSubscriber(ctx context.Context, id string) error
	/* RecordOutcome bumps the subscriber's success or failure counter
	 * and stamps last_sent_at. Counters survive concurrent attempts,
	 * so this must be atomic on the store.
	 */
	RecordOutcome(ctx context.Context, id string, success bool, at time.Time) error
}

// DeliveryReader provides read operations for deliveries
type DeliveryReader interface {
	GetDelivery(ctx context.Context, id string) (Delivery, error)
	/* DueDeliveries returns pending/retrying deliveries whose next
	 * attempt time is at or before now, oldest-due first, capped at
	 * limit records.
	 */
	DueDeliveries(ctx context.Context, now time.Time, limit int) ([]Delivery, error)
	// QueueDepth counts deliveries still queued (pending, retrying or claimed)
	QueueDepth(ctx context.Context) (int, error)
}

// DeliveryWriter provides write operations for deliveries
type DeliveryWriter interface {
	StoreDelivery(ctx context.Context, d Delivery) error
	UpdateDelivery(ctx context.Context, d Delivery) error
	/* ClaimDelivery atomically reserves a delivery for one worker for
	 * the lease duration. Exactly one concurrent caller wins; everyone
	 * else gets false. A claimed delivery reappears in due scans once
	 * the lease expires, so a crashed worker cannot strand it.
	 */
	ClaimDelivery(ctx context.Context, id string, lease time.Duration) (bool, error)
	/* PurgeTerminal removes sent/failed deliveries that completed
	 * before the cutoff. Pending and retrying records are never purged.
	 */
	PurgeTerminal(ctx context.Context, olderThan time.Time) (int, error)
}

// Repository combines the persistence operations the engine needs
type Repository interface {
	SubscriberReader
	SubscriberWriter
	DeliveryReader
	DeliveryWriter
	Close(ctx context.Context) error
}
