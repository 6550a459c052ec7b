package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/caseflow/webhook-outbox/webhook"
	"github.com/redis/go-redis/v9"
)

/* Redis implementation of webhook.Repository.
 * Each subscriber and delivery lives in its own hash, so updates touch one
 * record instead of rewriting a whole collection. Scheduling state lives in
 * two sorted sets: deliveries:due scored by next attempt time and
 * deliveries:terminal scored by completion time. Claim leases are SET NX PX
 * marker keys, which makes the claim a single atomic operation on the store.
 */

const (
	subscriberPrefix = "subscriber"          // Hash naming: subscriber:{id}
	subscriberIndex  = "subscribers"         // Set of all subscriber ids
	deliveryPrefix   = "delivery"            // Hash naming: delivery:{id}
	claimPrefix      = "delivery:claim"      // Lease keys: delivery:claim:{id}
	dueIndex         = "deliveries:due"      // ZSET scored by next attempt unix time
	terminalIndex    = "deliveries:terminal" // ZSET scored by completion unix time
)

type Repository struct {
	client *redis.Client
}

// NewRepository creates a new Redis repository
func NewRepository(addr, password string, db int) (*Repository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Repository{
		client: client,
	}, nil
}

// StoreSubscriber adds a subscriber hash and indexes its id
func (r *Repository) StoreSubscriber(ctx context.Context, sub webhook.Subscriber) error {
	eventsJSON, err := json.Marshal(sub.Events)
	if err != nil {
		return fmt.Errorf("marshaling events: %w", err)
	}
	headersJSON, err := json.Marshal(sub.CustomHeaders)
	if err != nil {
		return fmt.Errorf("marshaling custom headers: %w", err)
	}

	key := fmt.Sprintf("%s:%s", subscriberPrefix, sub.ID)
	err = r.client.HSet(ctx, key, map[string]interface{}{
		"id":              sub.ID,
		"url":             sub.URL,
		"events":          string(eventsJSON),
		"secret":          sub.Secret,
		"enabled":         boolToInt(sub.Enabled),
		"retry_attempts":  sub.RetryAttempts,
		"timeout_seconds": sub.TimeoutSeconds,
		"custom_headers":  string(headersJSON),
		"created_at":      sub.CreatedAt.Unix(),
		"last_sent_at":    int64(0),
		"success_count":   sub.SuccessCount,
		"failure_count":   sub.FailureCount,
	}).Err()
	if err != nil {
		return fmt.Errorf("storing subscriber: %w", err)
	}

	if err := r.client.SAdd(ctx, subscriberIndex, sub.ID).Err(); err != nil {
		return fmt.Errorf("indexing subscriber: %w", err)
	}

	return nil
}

// GetSubscriber retrieves a subscriber by id
func (r *Repository) GetSubscriber(ctx context.Context, id string) (webhook.Subscriber, error) {
	key := fmt.Sprintf("%s:%s", subscriberPrefix, id)

	data, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return webhook.Subscriber{}, fmt.Errorf("getting subscriber: %w", err)
	}
	if len(data) == 0 {
		return webhook.Subscriber{}, fmt.Errorf("subscriber %s: %w", id, webhook.ErrNotFound)
	}

	return parseSubscriber(data)
}

// ListSubscribers returns every indexed subscriber
func (r *Repository) ListSubscribers(ctx context.Context) ([]webhook.Subscriber, error) {
	ids, err := r.client.SMembers(ctx, subscriberIndex).Result()
	if err != nil {
		return nil, fmt.Errorf("listing subscriber ids: %w", err)
	}

	subs := make([]webhook.Subscriber, 0, len(ids))
	for _, id := range ids {
		sub, err := r.GetSubscriber(ctx, id)
		if err != nil {
			// Index entry without a hash; skip rather than fail the listing
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// UpdateSubscriber rewrites the mutable fields only. The secret, counters
// and creation time stored in the hash are left untouched.
func (r *Repository) UpdateSubscriber(ctx context.Context, sub webhook.Subscriber) error {
	key := fmt.Sprintf("%s:%s", subscriberPrefix, sub.ID)

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("checking subscriber: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("subscriber %s: %w", sub.ID, webhook.ErrNotFound)
	}

	eventsJSON, err := json.Marshal(sub.Events)
	if err != nil {
		return fmt.Errorf("marshaling events: %w", err)
	}
	headersJSON, err := json.Marshal(sub.CustomHeaders)
	if err != nil {
		return fmt.Errorf("marshaling custom headers: %w", err)
	}

	err = r.client.HSet(ctx, key, map[string]interface{}{
		"url":             sub.URL,
		"events":          string(eventsJSON),
		"enabled":         boolToInt(sub.Enabled),
		"retry_attempts":  sub.RetryAttempts,
		"timeout_seconds": sub.TimeoutSeconds,
		"custom_headers":  string(headersJSON),
	}).Err()
	if err != nil {
		return fmt.Errorf("updating subscriber: %w", err)
	}

	return nil
}

// DeleteSubscriber removes the hash and the index entry
func (r *Repository) DeleteSubscriber(ctx context.Context, id string) error {
	key := fmt.Sprintf("%s:%s", subscriberPrefix, id)

	deleted, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("deleting subscriber: %w", err)
	}
	if deleted == 0 {
		return fmt.Errorf("subscriber %s: %w", id, webhook.ErrNotFound)
	}

	if err := r.client.SRem(ctx, subscriberIndex, id).Err(); err != nil {
		return fmt.Errorf("unindexing subscriber: %w", err)
	}
	return nil
}

// RecordOutcome atomically bumps the success or failure counter and stamps
// the last attempt time.
func (r *Repository) RecordOutcome(ctx context.Context, id string, success bool, at time.Time) error {
	key := fmt.Sprintf("%s:%s", subscriberPrefix, id)

	field := "failure_count"
	if success {
		field = "success_count"
	}

	if err := r.client.HIncrBy(ctx, key, field, 1).Err(); err != nil {
		return fmt.Errorf("incrementing %s: %w", field, err)
	}
	if err := r.client.HSet(ctx, key, "last_sent_at", at.Unix()).Err(); err != nil {
		return fmt.Errorf("updating last_sent_at: %w", err)
	}
	return nil
}

// StoreDelivery adds a delivery hash and schedules it in the due index
func (r *Repository) StoreDelivery(ctx context.Context, d webhook.Delivery) error {
	if err := r.writeDelivery(ctx, d); err != nil {
		return err
	}

	if !d.Status.IsFinal() {
		err := r.client.ZAdd(ctx, dueIndex, redis.Z{
			Score:  float64(d.NextAttemptAt.Unix()),
			Member: d.ID,
		}).Err()
		if err != nil {
			return fmt.Errorf("indexing due delivery: %w", err)
		}
	}
	return nil
}

// GetDelivery retrieves a delivery by id
func (r *Repository) GetDelivery(ctx context.Context, id string) (webhook.Delivery, error) {
	key := fmt.Sprintf("%s:%s", deliveryPrefix, id)

	data, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return webhook.Delivery{}, fmt.Errorf("getting delivery: %w", err)
	}
	if len(data) == 0 {
		return webhook.Delivery{}, fmt.Errorf("delivery %s: %w", id, webhook.ErrNotFound)
	}

	return parseDelivery(data)
}

// UpdateDelivery persists an attempt outcome, re-indexes the record and
// releases the claim lease.
func (r *Repository) UpdateDelivery(ctx context.Context, d webhook.Delivery) error {
	key := fmt.Sprintf("%s:%s", deliveryPrefix, d.ID)

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("checking delivery: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("delivery %s: %w", d.ID, webhook.ErrNotFound)
	}

	if err := r.writeDelivery(ctx, d); err != nil {
		return err
	}

	pipe := r.client.Pipeline()
	if d.Status.IsFinal() {
		pipe.ZRem(ctx, dueIndex, d.ID)
		pipe.ZAdd(ctx, terminalIndex, redis.Z{
			Score:  float64(d.CompletedAt.Unix()),
			Member: d.ID,
		})
	} else {
		pipe.ZAdd(ctx, dueIndex, redis.Z{
			Score:  float64(d.NextAttemptAt.Unix()),
			Member: d.ID,
		})
	}
	pipe.Del(ctx, fmt.Sprintf("%s:%s", claimPrefix, d.ID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("re-indexing delivery: %w", err)
	}
	return nil
}

/* claimScript performs the whole claim as one atomic step on the store:
 * only a non-terminal record can be claimed, the SET NX PX lease key
 * decides the single winner, the due score is pushed past the lease
 * expiry, and the status flips to delivering. A terminal record found in
 * the due index is a stray; the script evicts it instead of claiming it.
 * Returns 1 = claimed, 0 = lost/unclaimable, -1 = no such delivery.
 */
var claimScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  redis.call('ZREM', KEYS[3], ARGV[1])
  return -1
end
if status == 'sent' or status == 'failed' then
  redis.call('ZREM', KEYS[3], ARGV[1])
  return 0
end
if redis.call('SET', KEYS[2], ARGV[4], 'NX', 'PX', ARGV[2]) then
  redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
  redis.call('HSET', KEYS[1], 'status', 'delivering')
  return 1
end
return 0
`)

// ClaimDelivery reserves a pending/retrying delivery for the lease
// duration. The record reappears in due scans only once the lease has run
// out; sent/failed records can never be claimed again.
func (r *Repository) ClaimDelivery(ctx context.Context, id string, lease time.Duration) (bool, error) {
	keys := []string{
		fmt.Sprintf("%s:%s", deliveryPrefix, id),
		fmt.Sprintf("%s:%s", claimPrefix, id),
		dueIndex,
	}
	args := []interface{}{
		id,
		lease.Milliseconds(),
		time.Now().Add(lease).Unix(),
		time.Now().UnixNano(),
	}

	result, err := claimScript.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return false, fmt.Errorf("claiming delivery: %w", err)
	}

	switch result {
	case 1:
		return true, nil
	case -1:
		return false, fmt.Errorf("delivery %s: %w", id, webhook.ErrNotFound)
	default:
		return false, nil
	}
}

// DueDeliveries returns up to limit deliveries due at or before now,
// oldest-due first.
func (r *Repository) DueDeliveries(ctx context.Context, now time.Time, limit int) ([]webhook.Delivery, error) {
	ids, err := r.client.ZRangeByScore(ctx, dueIndex, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("scanning due deliveries: %w", err)
	}

	deliveries := make([]webhook.Delivery, 0, len(ids))
	for _, id := range ids {
		d, err := r.GetDelivery(ctx, id)
		if err != nil {
			// Dangling index entry; drop it and move on
			r.client.ZRem(ctx, dueIndex, id)
			continue
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, nil
}

// QueueDepth counts deliveries still queued (pending, retrying or claimed)
func (r *Repository) QueueDepth(ctx context.Context) (int, error) {
	depth, err := r.client.ZCard(ctx, dueIndex).Result()
	if err != nil {
		return 0, fmt.Errorf("counting queued deliveries: %w", err)
	}
	return int(depth), nil
}

// PurgeTerminal removes sent/failed deliveries completed before the cutoff
func (r *Repository) PurgeTerminal(ctx context.Context, olderThan time.Time) (int, error) {
	cutoff := strconv.FormatInt(olderThan.Unix()-1, 10)

	ids, err := r.client.ZRangeByScore(ctx, terminalIndex, &redis.ZRangeBy{
		Min: "-inf",
		Max: cutoff,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("scanning terminal deliveries: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := r.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, fmt.Sprintf("%s:%s", deliveryPrefix, id))
		pipe.ZRem(ctx, terminalIndex, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("purging terminal deliveries: %w", err)
	}
	return len(ids), nil
}

// Close closes the Redis connection
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}

// GetClient returns the underlying Redis client for advanced operations
func (r *Repository) GetClient() *redis.Client {
	return r.client
}

// Helper functions

func (r *Repository) writeDelivery(ctx context.Context, d webhook.Delivery) error {
	headersJSON, err := json.Marshal(d.CustomHeaders)
	if err != nil {
		return fmt.Errorf("marshaling custom headers: %w", err)
	}

	key := fmt.Sprintf("%s:%s", deliveryPrefix, d.ID)
	err = r.client.HSet(ctx, key, map[string]interface{}{
		"id":              d.ID,
		"subscriber_id":   d.SubscriberID,
		"payload":         d.Payload,
		"signature":       d.Signature,
		"status":          d.Status.String(),
		"attempts":        d.Attempts,
		"max_attempts":    d.MaxAttempts,
		"timeout_seconds": d.TimeoutSeconds,
		"custom_headers":  string(headersJSON),
		"created_at":      d.CreatedAt.Unix(),
		"next_attempt_at": d.NextAttemptAt.Unix(),
		"completed_at":    unixOrZero(d.CompletedAt),
		"last_error":      d.LastError,
		"response_code":   d.ResponseCode,
		"response_body":   d.ResponseBody,
	}).Err()
	if err != nil {
		return fmt.Errorf("storing delivery: %w", err)
	}
	return nil
}

func parseSubscriber(data map[string]string) (webhook.Subscriber, error) {
	var events []string
	if s, ok := data["events"]; ok && s != "" {
		if err := json.Unmarshal([]byte(s), &events); err != nil {
			return webhook.Subscriber{}, fmt.Errorf("unmarshaling events: %w", err)
		}
	}

	var headers []webhook.Header
	if s, ok := data["custom_headers"]; ok && s != "" {
		if err := json.Unmarshal([]byte(s), &headers); err != nil {
			return webhook.Subscriber{}, fmt.Errorf("unmarshaling custom headers: %w", err)
		}
	}

	return webhook.Subscriber{
		ID:             data["id"],
		URL:            data["url"],
		Events:         events,
		Secret:         data["secret"],
		Enabled:        data["enabled"] == "1",
		RetryAttempts:  int(parseInt64(data["retry_attempts"])),
		TimeoutSeconds: int(parseInt64(data["timeout_seconds"])),
		CustomHeaders:  headers,
		CreatedAt:      time.Unix(parseInt64(data["created_at"]), 0),
		LastSentAt:     timeOrZero(parseInt64(data["last_sent_at"])),
		SuccessCount:   parseInt64(data["success_count"]),
		FailureCount:   parseInt64(data["failure_count"]),
	}, nil
}

func parseDelivery(data map[string]string) (webhook.Delivery, error) {
	var headers []webhook.Header
	if s, ok := data["custom_headers"]; ok && s != "" {
		if err := json.Unmarshal([]byte(s), &headers); err != nil {
			return webhook.Delivery{}, fmt.Errorf("unmarshaling custom headers: %w", err)
		}
	}

	return webhook.Delivery{
		ID:             data["id"],
		SubscriberID:   data["subscriber_id"],
		Payload:        []byte(data["payload"]),
		Signature:      data["signature"],
		Status:         webhook.NewStatus(data["status"]),
		Attempts:       int(parseInt64(data["attempts"])),
		MaxAttempts:    int(parseInt64(data["max_attempts"])),
		TimeoutSeconds: int(parseInt64(data["timeout_seconds"])),
		CustomHeaders:  headers,
		CreatedAt:      time.Unix(parseInt64(data["created_at"]), 0),
		NextAttemptAt:  time.Unix(parseInt64(data["next_attempt_at"]), 0),
		CompletedAt:    timeOrZero(parseInt64(data["completed_at"])),
		LastError:      data["last_error"],
		ResponseCode:   int(parseInt64(data["response_code"])),
		ResponseBody:   data["response_body"],
	}, nil
}

func parseInt64(s string) int64 {
	result, _ := strconv.ParseInt(s, 10, 64)
	return result
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}
