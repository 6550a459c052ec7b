package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/caseflow/webhook-outbox/event"
	"github.com/caseflow/webhook-outbox/metrics"
	"github.com/caseflow/webhook-outbox/webhook"
	"github.com/caseflow/webhook-outbox/webhook/signature"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultLowWaterMark is the queue depth under which new deliveries are
// attempted synchronously instead of waiting for the next processor pass.
const DefaultLowWaterMark = 10

/* Dispatcher fans a domain event out to every matching subscriber.
 * Fire is the single entry point the host application calls whenever
 * something happens (complaint created, status changed, login failed...).
 */
type Dispatcher struct {
	repo         webhook.Repository
	processor    *Processor
	source       event.Source
	logger       *zap.Logger
	lowWaterMark int
}

// NewDispatcher creates an event dispatcher. lowWaterMark <= 0 uses the
// default.
func NewDispatcher(repo webhook.Repository, processor *Processor, source event.Source, logger *zap.Logger, lowWaterMark int) *Dispatcher {
	if lowWaterMark <= 0 {
		lowWaterMark = DefaultLowWaterMark
	}
	return &Dispatcher{
		repo:         repo,
		processor:    processor,
		source:       source,
		logger:       logger,
		lowWaterMark: lowWaterMark,
	}
}

/* Fire creates one pending delivery per enabled matching subscriber and,
 * when the queue is shallow, attempts the new deliveries before
 * returning. It is fire-and-forget with respect to delivery outcome:
 * the only errors returned are for an event that cannot be built at all
 * (invalid type, unserializable payload). Attempt failures never reach
 * the caller; they drive the retry state machine instead.
 */
func (dp *Dispatcher) Fire(ctx context.Context, eventType string, data, eventContext any) error {
	ev, err := event.New(eventType, data, eventContext, dp.source)
	if err != nil {
		return fmt.Errorf("building event: %w", err)
	}

	payload, err := ev.Bytes()
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	subs, err := dp.repo.ListSubscribers(ctx)
	if err != nil {
		dp.logger.Error("listing subscribers failed",
			zap.String("event_type", eventType),
			zap.Error(err))
		return nil
	}

	now := time.Now().UTC()
	var created []string
	for _, sub := range subs {
		if !sub.Enabled || !sub.Matches(eventType) {
			continue
		}

		d := webhook.Delivery{
			ID:             uuid.New().String(),
			SubscriberID:   sub.ID,
			Payload:        payload,
			Signature:      signature.Sign(payload, sub.Secret),
			Status:         webhook.Pending,
			MaxAttempts:    sub.RetryAttempts,
			TimeoutSeconds: sub.TimeoutSeconds,
			CustomHeaders:  sub.CustomHeaders,
			CreatedAt:      now,
			NextAttemptAt:  now,
		}

		if err := dp.repo.StoreDelivery(ctx, d); err != nil {
			dp.logger.Error("storing delivery failed",
				zap.String("subscriber_id", sub.ID),
				zap.String("event_type", eventType),
				zap.Error(err))
			continue
		}

		metrics.DeliveriesCreated.WithLabelValues(eventType).Inc()
		created = append(created, d.ID)
	}

	if len(created) == 0 {
		return nil
	}

	depth, err := dp.repo.QueueDepth(ctx)
	if err != nil {
		dp.logger.Warn("reading queue depth failed", zap.Error(err))
		return nil
	}

	// Shallow queue: attempt the new deliveries inline. A deep queue
	// leaves them for the next processor pass so Fire stays cheap.
	if depth < dp.lowWaterMark {
		for _, id := range created {
			if err := dp.processor.Attempt(ctx, id); err != nil {
				dp.logger.Warn("synchronous attempt failed",
					zap.String("delivery_id", id),
					zap.Error(err))
			}
		}
	}

	return nil
}
