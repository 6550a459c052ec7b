package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/caseflow/webhook-outbox/webhook"
)

/* In-memory implementation of webhook.Repository.
 * Used by unit tests and by single-binary deployments that do not need
 * delivery state to survive a restart. Mirrors the Redis implementation's
 * semantics: a due index ordered by next attempt time, claim leases, and
 * a terminal index ordered by completion time.
 */

type Repository struct {
	mu          sync.Mutex
	subscribers map[string]webhook.Subscriber
	deliveries  map[string]webhook.Delivery
	due         map[string]time.Time // delivery id -> next attempt time
	terminal    map[string]time.Time // delivery id -> completion time
	claims      map[string]time.Time // delivery id -> lease expiry
}

// NewRepository creates an empty in-memory repository
func NewRepository() *Repository {
	return &Repository{
		subscribers: make(map[string]webhook.Subscriber),
		deliveries:  make(map[string]webhook.Delivery),
		due:         make(map[string]time.Time),
		terminal:    make(map[string]time.Time),
		claims:      make(map[string]time.Time),
	}
}

// StoreSubscriber adds a new subscriber
func (r *Repository) StoreSubscriber(ctx context.Context, sub webhook.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subscribers[sub.ID] = sub
	return nil
}

// GetSubscriber retrieves a subscriber by id
func (r *Repository) GetSubscriber(ctx context.Context, id string) (webhook.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subscribers[id]
	if !ok {
		return webhook.Subscriber{}, fmt.Errorf("subscriber %s: %w", id, webhook.ErrNotFound)
	}
	return sub, nil
}

// ListSubscribers returns all subscribers, oldest first
func (r *Repository) ListSubscribers(ctx context.Context) ([]webhook.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := make([]webhook.Subscriber, 0, len(r.subscribers))
	for _, sub := range r.subscribers {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool {
		return subs[i].CreatedAt.Before(subs[j].CreatedAt)
	})
	return subs, nil
}

// UpdateSubscriber rewrites the mutable fields of an existing subscriber.
// Secret, counters and creation time are kept from the stored record.
func (r *Repository) UpdateSubscriber(ctx context.Context, sub webhook.Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.subscribers[sub.ID]
	if !ok {
		return fmt.Errorf("subscriber %s: %w", sub.ID, webhook.ErrNotFound)
	}

	existing.URL = sub.URL
	existing.Events = sub.Events
	existing.Enabled = sub.Enabled
	existing.RetryAttempts = sub.RetryAttempts
	existing.TimeoutSeconds = sub.TimeoutSeconds
	existing.CustomHeaders = sub.CustomHeaders
	r.subscribers[sub.ID] = existing
	return nil
}

// DeleteSubscriber removes a subscriber
func (r *Repository) DeleteSubscriber(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subscribers[id]; !ok {
		return fmt.Errorf("subscriber %s: %w", id, webhook.ErrNotFound)
	}
	delete(r.subscribers, id)
	return nil
}

// RecordOutcome bumps the subscriber's success or failure counter
func (r *Repository) RecordOutcome(ctx context.Context, id string, success bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subscribers[id]
	if !ok {
		return fmt.Errorf("subscriber %s: %w", id, webhook.ErrNotFound)
	}
	if success {
		sub.SuccessCount++
	} else {
		sub.FailureCount++
	}
	sub.LastSentAt = at
	r.subscribers[id] = sub
	return nil
}

// StoreDelivery adds a new delivery and indexes it as due
func (r *Repository) StoreDelivery(ctx context.Context, d webhook.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deliveries[d.ID] = d
	if !d.Status.IsFinal() {
		r.due[d.ID] = d.NextAttemptAt
	}
	return nil
}

// GetDelivery retrieves a delivery by id
func (r *Repository) GetDelivery(ctx context.Context, id string) (webhook.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.deliveries[id]
	if !ok {
		return webhook.Delivery{}, fmt.Errorf("delivery %s: %w", id, webhook.ErrNotFound)
	}
	return d, nil
}

// UpdateDelivery persists the outcome of an attempt and re-indexes the
// record: terminal deliveries leave the due index, retrying ones get their
// next attempt time, and the claim lease is released either way.
func (r *Repository) UpdateDelivery(ctx context.Context, d webhook.Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.deliveries[d.ID]; !ok {
		return fmt.Errorf("delivery %s: %w", d.ID, webhook.ErrNotFound)
	}

	r.deliveries[d.ID] = d
	delete(r.claims, d.ID)

	if d.Status.IsFinal() {
		delete(r.due, d.ID)
		r.terminal[d.ID] = d.CompletedAt
	} else {
		r.due[d.ID] = d.NextAttemptAt
	}
	return nil
}

// ClaimDelivery reserves a delivery for the lease duration. The due index
// entry is pushed past the lease expiry so other passes skip the record
// until the lease runs out.
func (r *Repository) ClaimDelivery(ctx context.Context, id string, lease time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.deliveries[id]
	if !ok {
		return false, fmt.Errorf("delivery %s: %w", id, webhook.ErrNotFound)
	}
	if d.Status.IsFinal() {
		return false, nil
	}

	now := time.Now()
	if expiry, claimed := r.claims[id]; claimed && expiry.After(now) {
		return false, nil
	}

	r.claims[id] = now.Add(lease)
	r.due[id] = now.Add(lease)
	d.Status = webhook.Delivering
	r.deliveries[id] = d
	return true, nil
}

// DueDeliveries returns queued deliveries due at or before now
func (r *Repository) DueDeliveries(ctx context.Context, now time.Time, limit int) ([]webhook.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	type dueEntry struct {
		id string
		at time.Time
	}
	var entries []dueEntry
	for id, at := range r.due {
		if !at.After(now) {
			entries = append(entries, dueEntry{id: id, at: at})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].at.Before(entries[j].at)
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	deliveries := make([]webhook.Delivery, 0, len(entries))
	for _, e := range entries {
		deliveries = append(deliveries, r.deliveries[e.id])
	}
	return deliveries, nil
}

// QueueDepth counts deliveries still queued
func (r *Repository) QueueDepth(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.due), nil
}

// PurgeTerminal removes sent/failed deliveries completed before the cutoff
func (r *Repository) PurgeTerminal(ctx context.Context, olderThan time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	purged := 0
	for id, completedAt := range r.terminal {
		if completedAt.Before(olderThan) {
			delete(r.terminal, id)
			delete(r.deliveries, id)
			purged++
		}
	}
	return purged, nil
}

// Close is a no-op for the in-memory store
func (r *Repository) Close(ctx context.Context) error {
	return nil
}
