package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/caseflow/webhook-outbox/event"
	"github.com/caseflow/webhook-outbox/metrics"
	"github.com/caseflow/webhook-outbox/webhook"
	"github.com/caseflow/webhook-outbox/webhook/signature"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultBatchSize bounds the work done by one ProcessQueue pass
	DefaultBatchSize = 20
	// DefaultLease is how long a claimed delivery is reserved for one worker
	DefaultLease = 60 * time.Second
	// DefaultRetention is how long terminal deliveries are kept around
	DefaultRetention = 24 * time.Hour

	backoffBase = 60 * time.Second
	backoffCap  = time.Hour
)

// Backoff returns the delay before attempt n+1: min(2^n * 60, 3600) seconds
func Backoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	// 2^6 * 60s already exceeds the cap
	if attempts >= 6 {
		return backoffCap
	}
	delay := backoffBase << uint(attempts)
	if delay > backoffCap {
		return backoffCap
	}
	return delay
}

/* Processor drains due deliveries and drives the retry state machine.
 * It performs no blocking wait itself: it is meant to be invoked
 * repeatedly by an external periodic trigger (the worker binary's ticker
 * or the queue-process endpoint). Each pass claims its records before
 * touching them, so overlapping invocations are safe.
 */
type Processor struct {
	repo      webhook.Repository
	sender    *Sender
	notifier  Notifier
	logger    *zap.Logger
	source    event.Source
	batchSize int
	lease     time.Duration
	retention time.Duration
}

// ProcessorOptions tunes a Processor; zero values use the defaults
type ProcessorOptions struct {
	BatchSize int
	Lease     time.Duration
	Retention time.Duration
}

// NewProcessor creates a delivery processor
func NewProcessor(repo webhook.Repository, sender *Sender, notifier Notifier, source event.Source, logger *zap.Logger, opts ProcessorOptions) *Processor {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Lease <= 0 {
		opts.Lease = DefaultLease
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	return &Processor{
		repo:      repo,
		sender:    sender,
		notifier:  notifier,
		logger:    logger,
		source:    source,
		batchSize: opts.BatchSize,
		lease:     opts.Lease,
		retention: opts.Retention,
	}
}

// ProcessQueue scans due deliveries, attempts the ones it wins the claim
// for, and runs the housekeeping purge. Attempts within the batch run
// concurrently; each is an independent HTTP call bounded by its own
// timeout. Returns the number of deliveries attempted.
func (p *Processor) ProcessQueue(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	due, err := p.repo.DueDeliveries(ctx, now, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("scanning due deliveries: %w", err)
	}

	var claimed []webhook.Delivery
	for _, d := range due {
		won, err := p.repo.ClaimDelivery(ctx, d.ID, p.lease)
		if err != nil {
			p.logger.Warn("claim failed",
				zap.String("delivery_id", d.ID),
				zap.Error(err))
			continue
		}
		if won {
			claimed = append(claimed, d)
		}
	}

	var wg sync.WaitGroup
	for _, d := range claimed {
		wg.Add(1)
		go func(d webhook.Delivery) {
			defer wg.Done()
			p.processDelivery(ctx, d)
		}(d)
	}
	wg.Wait()

	p.housekeeping(ctx, now)

	if depth, err := p.repo.QueueDepth(ctx); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}

	return len(claimed), nil
}

/* processDelivery runs one attempt against a claimed delivery and
 * persists the resulting state transition:
 *   success            -> sent (terminal)
 *   failure, attempts left -> retrying, next attempt after backoff
 *   failure, exhausted -> failed (terminal), escalation
 */
func (p *Processor) processDelivery(ctx context.Context, d webhook.Delivery) {
	d.Attempts++
	start := time.Now()

	sub, err := p.repo.GetSubscriber(ctx, d.SubscriberID)
	if errors.Is(err, webhook.ErrNotFound) {
		// Subscriber deleted while the delivery was queued; nothing to
		// deliver to, so the record terminates without escalation.
		d.Exhaust(fmt.Sprintf("subscriber no longer exists: %v", err), 0, "", time.Now().UTC())
		p.persist(ctx, d)
		return
	}
	if err != nil {
		// Transient store error. The record stays untouched; once the
		// lease runs out a later pass picks it up again.
		p.logger.Warn("loading subscriber failed",
			zap.String("delivery_id", d.ID),
			zap.String("subscriber_id", d.SubscriberID),
			zap.Error(err))
		return
	}

	code, body, sendErr := p.sender.Send(ctx, d, sub.URL)
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
	now := time.Now().UTC()

	if sendErr == nil && code >= 200 && code < 300 {
		d.Succeed(code, body, now)
		p.persist(ctx, d)
		p.recordOutcome(ctx, d.SubscriberID, true, now)
		metrics.DeliveryAttempts.WithLabelValues(metrics.OutcomeSent).Inc()
		p.logger.Info("delivery sent",
			zap.String("delivery_id", d.ID),
			zap.String("subscriber_id", d.SubscriberID),
			zap.Int("attempts", d.Attempts),
			zap.Int("status_code", code))
		return
	}

	lastError := fmt.Sprintf("unexpected status %d", code)
	if sendErr != nil {
		lastError = sendErr.Error()
		code = 0
		body = ""
	}

	if d.Attempts >= d.MaxAttempts {
		d.Exhaust(lastError, code, body, now)
		p.persist(ctx, d)
		p.recordOutcome(ctx, d.SubscriberID, false, now)
		metrics.DeliveryAttempts.WithLabelValues(metrics.OutcomeFailed).Inc()
		p.escalate(ctx, sub, d)
		return
	}

	d.Retry(lastError, code, body, now.Add(Backoff(d.Attempts)))
	p.persist(ctx, d)
	metrics.DeliveryAttempts.WithLabelValues(metrics.OutcomeRetried).Inc()
	p.logger.Warn("delivery attempt failed, scheduled retry",
		zap.String("delivery_id", d.ID),
		zap.String("subscriber_id", d.SubscriberID),
		zap.Int("attempts", d.Attempts),
		zap.String("last_error", lastError),
		zap.Time("next_attempt_at", d.NextAttemptAt))
}

// Attempt claims and processes a single delivery. Used for the
// synchronous fast path and for test deliveries; losing the claim is not
// an error, it just means another pass got there first.
func (p *Processor) Attempt(ctx context.Context, id string) error {
	won, err := p.repo.ClaimDelivery(ctx, id, p.lease)
	if err != nil {
		return fmt.Errorf("claiming delivery: %w", err)
	}
	if !won {
		return nil
	}

	d, err := p.repo.GetDelivery(ctx, id)
	if err != nil {
		return fmt.Errorf("getting delivery: %w", err)
	}
	// A competing pass may have completed the record between the scan and
	// the claim; a terminal delivery is never attempted again.
	if d.Status.IsFinal() {
		return nil
	}
	p.processDelivery(ctx, d)
	return nil
}

/* Test sends a synthetic webhook.test event to one subscriber with a
 * single attempt and returns the finished record. It deliberately works
 * for disabled subscribers too, so an endpoint can be verified before
 * being switched on.
 */
func (p *Processor) Test(ctx context.Context, subscriberID string) (webhook.Delivery, error) {
	sub, err := p.repo.GetSubscriber(ctx, subscriberID)
	if err != nil {
		return webhook.Delivery{}, fmt.Errorf("getting subscriber: %w", err)
	}

	ev, err := event.New("webhook.test", map[string]string{
		"message": "test delivery requested via the webhook API",
	}, nil, p.source)
	if err != nil {
		return webhook.Delivery{}, fmt.Errorf("building test event: %w", err)
	}

	payload, err := ev.Bytes()
	if err != nil {
		return webhook.Delivery{}, fmt.Errorf("encoding test event: %w", err)
	}

	now := time.Now().UTC()
	d := webhook.Delivery{
		ID:             uuid.New().String(),
		SubscriberID:   sub.ID,
		Payload:        payload,
		Signature:      signature.Sign(payload, sub.Secret),
		Status:         webhook.Pending,
		MaxAttempts:    1,
		TimeoutSeconds: sub.TimeoutSeconds,
		CustomHeaders:  sub.CustomHeaders,
		CreatedAt:      now,
		NextAttemptAt:  now,
	}

	if err := p.repo.StoreDelivery(ctx, d); err != nil {
		return webhook.Delivery{}, fmt.Errorf("storing test delivery: %w", err)
	}

	if err := p.Attempt(ctx, d.ID); err != nil {
		return webhook.Delivery{}, fmt.Errorf("attempting test delivery: %w", err)
	}

	result, err := p.repo.GetDelivery(ctx, d.ID)
	if err != nil {
		return webhook.Delivery{}, fmt.Errorf("getting test delivery: %w", err)
	}
	return result, nil
}

func (p *Processor) housekeeping(ctx context.Context, now time.Time) {
	purged, err := p.repo.PurgeTerminal(ctx, now.Add(-p.retention))
	if err != nil {
		p.logger.Warn("housekeeping purge failed", zap.Error(err))
		return
	}
	if purged > 0 {
		metrics.TerminalPurged.Add(float64(purged))
		p.logger.Info("purged terminal deliveries", zap.Int("count", purged))
	}
}

func (p *Processor) persist(ctx context.Context, d webhook.Delivery) {
	if err := p.repo.UpdateDelivery(ctx, d); err != nil {
		p.logger.Error("persisting delivery state failed",
			zap.String("delivery_id", d.ID),
			zap.Error(err))
	}
}

func (p *Processor) recordOutcome(ctx context.Context, subscriberID string, success bool, at time.Time) {
	if err := p.repo.RecordOutcome(ctx, subscriberID, success, at); err != nil {
		p.logger.Warn("recording outcome failed",
			zap.String("subscriber_id", subscriberID),
			zap.Error(err))
	}
}

func (p *Processor) escalate(ctx context.Context, sub webhook.Subscriber, d webhook.Delivery) {
	metrics.Escalations.Inc()
	title := "Webhook delivery failed permanently"
	message := fmt.Sprintf("webhook %s (%s) failed after %d attempts: %s",
		sub.ID, sub.URL, d.Attempts, d.LastError)

	if err := p.notifier.Notify(ctx, title, message, SeverityError); err != nil {
		p.logger.Error("escalation notification failed",
			zap.String("subscriber_id", sub.ID),
			zap.Error(err))
	}
}
