package dispatch_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/caseflow/webhook-outbox/dispatch"
	"github.com/caseflow/webhook-outbox/dispatch/mocks"
	"github.com/caseflow/webhook-outbox/event"
	"github.com/caseflow/webhook-outbox/webhook"
	"github.com/caseflow/webhook-outbox/webhook/memory"
	repomocks "github.com/caseflow/webhook-outbox/webhook/mocks"
	"github.com/caseflow/webhook-outbox/webhook/signature"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testSource = event.Source{
	Application: "caseflow",
	Version:     "test",
	Environment: "test",
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempts int
		want     time.Duration
	}{
		{0, 60 * time.Second},
		{1, 120 * time.Second},
		{2, 240 * time.Second},
		{3, 480 * time.Second},
		{5, 1920 * time.Second},
		{6, time.Hour},
		{10, time.Hour},
		{100, time.Hour},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, dispatch.Backoff(tt.attempts), "attempts=%d", tt.attempts)
	}
}

// storeSubscriber puts a subscriber straight into the repository,
// bypassing the registry, so tests control every field.
func storeSubscriber(t *testing.T, repo webhook.Repository, url string, retryAttempts int) webhook.Subscriber {
	t.Helper()

	secret, err := signature.GenerateSecret()
	require.NoError(t, err)

	sub := webhook.Subscriber{
		ID:             uuid.New().String(),
		URL:            url,
		Secret:         secret,
		Enabled:        true,
		RetryAttempts:  retryAttempts,
		TimeoutSeconds: 5,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.StoreSubscriber(context.Background(), sub))
	return sub
}

func storeDelivery(t *testing.T, repo webhook.Repository, sub webhook.Subscriber) webhook.Delivery {
	t.Helper()

	payload, err := mustEvent(t).Bytes()
	require.NoError(t, err)

	now := time.Now().UTC()
	d := webhook.Delivery{
		ID:             uuid.New().String(),
		SubscriberID:   sub.ID,
		Payload:        payload,
		Signature:      signature.Sign(payload, sub.Secret),
		Status:         webhook.Pending,
		MaxAttempts:    sub.RetryAttempts,
		TimeoutSeconds: sub.TimeoutSeconds,
		CreatedAt:      now,
		NextAttemptAt:  now,
	}
	require.NoError(t, repo.StoreDelivery(context.Background(), d))
	return d
}

// makeDue rewinds a queued delivery's next attempt time so the next
// processor pass picks it up without waiting out the backoff. Terminal
// deliveries are left alone.
func makeDue(t *testing.T, repo webhook.Repository, id string) {
	t.Helper()

	d, err := repo.GetDelivery(context.Background(), id)
	require.NoError(t, err)
	if d.Status.IsFinal() {
		return
	}
	d.NextAttemptAt = time.Now().UTC().Add(-time.Second)
	require.NoError(t, repo.UpdateDelivery(context.Background(), d))
}

func mustEvent(t *testing.T) event.Event {
	t.Helper()
	ev, err := event.New("complaint.created", map[string]string{"id": "42"}, nil, testSource)
	require.NoError(t, err)
	return ev
}

func newProcessor(repo webhook.Repository, notifier dispatch.Notifier) *dispatch.Processor {
	return dispatch.NewProcessor(repo, dispatch.NewSender(), notifier, testSource, zap.NewNop(), dispatch.ProcessorOptions{})
}

func TestProcessQueue(t *testing.T) {
	ctx := context.Background()

	t.Run("successful attempt moves delivery to sent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		notifier := mocks.NewNotifier(t)
		processor := newProcessor(repo, notifier)

		sub := storeSubscriber(t, repo, server.URL, 3)
		d := storeDelivery(t, repo, sub)

		processed, err := processor.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, processed)

		got, err := repo.GetDelivery(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Sent, got.Status)
		assert.Equal(t, 1, got.Attempts)
		assert.Equal(t, http.StatusOK, got.ResponseCode)
		assert.False(t, got.CompletedAt.IsZero())

		gotSub, err := repo.GetSubscriber(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), gotSub.SuccessCount)
		assert.Zero(t, gotSub.FailureCount)
	})

	t.Run("non-2xx schedules retry with backoff", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusInternalServerError)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		notifier := mocks.NewNotifier(t)
		processor := newProcessor(repo, notifier)

		sub := storeSubscriber(t, repo, server.URL, 3)
		d := storeDelivery(t, repo, sub)

		processed, err := processor.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, processed)

		got, err := repo.GetDelivery(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Retrying, got.Status)
		assert.Equal(t, 1, got.Attempts)
		assert.Contains(t, got.LastError, "unexpected status 500")
		// Second attempt waits min(2^1*60, 3600) = 120 seconds
		assert.WithinDuration(t, time.Now().Add(120*time.Second), got.NextAttemptAt, 10*time.Second)

		// Counters only move on terminal outcomes
		gotSub, err := repo.GetSubscriber(ctx, sub.ID)
		require.NoError(t, err)
		assert.Zero(t, gotSub.SuccessCount)
		assert.Zero(t, gotSub.FailureCount)
	})

	t.Run("transport failure schedules retry", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close() // connection refused

		repo := memory.NewRepository()
		notifier := mocks.NewNotifier(t)
		processor := newProcessor(repo, notifier)

		sub := storeSubscriber(t, repo, server.URL, 3)
		d := storeDelivery(t, repo, sub)

		_, err := processor.ProcessQueue(ctx)
		require.NoError(t, err)

		got, err := repo.GetDelivery(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Retrying, got.Status)
		assert.NotEmpty(t, got.LastError)
		assert.Zero(t, got.ResponseCode)
	})

	t.Run("exhausted delivery fails and escalates", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		notifier := mocks.NewNotifier(t)
		notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, dispatch.SeverityError).Return(nil).Once()
		processor := newProcessor(repo, notifier)

		sub := storeSubscriber(t, repo, server.URL, 1)
		d := storeDelivery(t, repo, sub)

		processed, err := processor.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, processed)

		got, err := repo.GetDelivery(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Failed, got.Status)
		assert.Equal(t, 1, got.Attempts)
		assert.False(t, got.CompletedAt.IsZero())

		gotSub, err := repo.GetSubscriber(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), gotSub.FailureCount)
		notifier.AssertExpectations(t)
	})

	t.Run("deleted subscriber terminates delivery without escalation", func(t *testing.T) {
		repo := memory.NewRepository()
		notifier := mocks.NewNotifier(t)
		processor := newProcessor(repo, notifier)

		// Delivery pointing at a subscriber that no longer exists
		now := time.Now().UTC()
		d := webhook.Delivery{
			ID:            uuid.New().String(),
			SubscriberID:  "gone",
			Payload:       []byte(`{}`),
			Status:        webhook.Pending,
			MaxAttempts:   3,
			CreatedAt:     now,
			NextAttemptAt: now,
		}
		require.NoError(t, repo.StoreDelivery(ctx, d))

		_, err := processor.ProcessQueue(ctx)
		require.NoError(t, err)

		got, err := repo.GetDelivery(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Failed, got.Status)
		assert.Contains(t, got.LastError, "subscriber no longer exists")
	})

	t.Run("transient subscriber lookup error leaves the record for a later pass", func(t *testing.T) {
		repo := repomocks.NewRepository(t)
		notifier := mocks.NewNotifier(t)
		processor := dispatch.NewProcessor(repo, dispatch.NewSender(), notifier, testSource, zap.NewNop(), dispatch.ProcessorOptions{})

		now := time.Now().UTC()
		d := webhook.Delivery{
			ID:            uuid.New().String(),
			SubscriberID:  uuid.New().String(),
			Payload:       []byte(`{}`),
			Status:        webhook.Pending,
			MaxAttempts:   3,
			CreatedAt:     now,
			NextAttemptAt: now,
		}

		repo.On("DueDeliveries", mock.Anything, mock.Anything, dispatch.DefaultBatchSize).Return([]webhook.Delivery{d}, nil)
		repo.On("ClaimDelivery", mock.Anything, d.ID, dispatch.DefaultLease).Return(true, nil)
		repo.On("GetSubscriber", mock.Anything, d.SubscriberID).Return(webhook.Subscriber{}, errors.New("i/o timeout"))
		repo.On("PurgeTerminal", mock.Anything, mock.Anything).Return(0, nil)
		repo.On("QueueDepth", mock.Anything).Return(1, nil)

		processed, err := processor.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, processed)

		// The stored record must stay as is so the delivery is retried
		// once the lease expires; only a missing subscriber terminates it.
		repo.AssertNotCalled(t, "UpdateDelivery", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "RecordOutcome", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("claim racing a completed record attempts nothing", func(t *testing.T) {
		repo := repomocks.NewRepository(t)
		notifier := mocks.NewNotifier(t)
		processor := dispatch.NewProcessor(repo, dispatch.NewSender(), notifier, testSource, zap.NewNop(), dispatch.ProcessorOptions{})

		id := uuid.New().String()
		repo.On("ClaimDelivery", mock.Anything, id, dispatch.DefaultLease).Return(true, nil)
		repo.On("GetDelivery", mock.Anything, id).Return(webhook.Delivery{
			ID:          id,
			Status:      webhook.Sent,
			Attempts:    1,
			MaxAttempts: 3,
			CompletedAt: time.Now().UTC(),
		}, nil)

		require.NoError(t, processor.Attempt(ctx, id))

		repo.AssertNotCalled(t, "GetSubscriber", mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "UpdateDelivery", mock.Anything, mock.Anything)
	})

	t.Run("claimed delivery is skipped by later passes", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		notifier := mocks.NewNotifier(t)
		processor := newProcessor(repo, notifier)

		sub := storeSubscriber(t, repo, server.URL, 3)
		d := storeDelivery(t, repo, sub)

		// Another worker holds the claim
		won, err := repo.ClaimDelivery(ctx, d.ID, time.Minute)
		require.NoError(t, err)
		require.True(t, won)

		processed, err := processor.ProcessQueue(ctx)
		require.NoError(t, err)
		assert.Zero(t, processed)

		got, err := repo.GetDelivery(ctx, d.ID)
		require.NoError(t, err)
		assert.Zero(t, got.Attempts)
	})

	t.Run("succeeds on the third attempt", func(t *testing.T) {
		var hits atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if hits.Add(1) < 3 {
				http.Error(w, "flaky", http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		notifier := mocks.NewNotifier(t)
		processor := newProcessor(repo, notifier)

		sub := storeSubscriber(t, repo, server.URL, 3)
		d := storeDelivery(t, repo, sub)

		for i := 0; i < 3; i++ {
			makeDue(t, repo, d.ID)
			_, err := processor.ProcessQueue(ctx)
			require.NoError(t, err)
		}

		got, err := repo.GetDelivery(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Sent, got.Status)
		assert.Equal(t, 3, got.Attempts)
		assert.Equal(t, int64(3), hits.Load())

		gotSub, err := repo.GetSubscriber(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), gotSub.SuccessCount)
		assert.Zero(t, gotSub.FailureCount)
	})

	t.Run("fails permanently after the configured attempts", func(t *testing.T) {
		var hits atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			http.Error(w, "down for good", http.StatusInternalServerError)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		notifier := mocks.NewNotifier(t)
		notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, dispatch.SeverityError).Return(nil).Once()
		processor := newProcessor(repo, notifier)

		sub := storeSubscriber(t, repo, server.URL, 2)
		d := storeDelivery(t, repo, sub)

		// Extra passes beyond the retry limit must not attempt again
		for i := 0; i < 4; i++ {
			makeDue(t, repo, d.ID)
			_, err := processor.ProcessQueue(ctx)
			require.NoError(t, err)
		}

		got, err := repo.GetDelivery(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Failed, got.Status)
		assert.Equal(t, 2, got.Attempts)
		assert.Equal(t, int64(2), hits.Load())

		gotSub, err := repo.GetSubscriber(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), gotSub.FailureCount)
		notifier.AssertExpectations(t)
	})

	t.Run("delivery is never double-sent under concurrent claims", func(t *testing.T) {
		var hits atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		notifier := mocks.NewNotifier(t)
		processor := newProcessor(repo, notifier)

		sub := storeSubscriber(t, repo, server.URL, 3)
		d := storeDelivery(t, repo, sub)

		done := make(chan struct{})
		for i := 0; i < 4; i++ {
			go func() {
				defer func() { done <- struct{}{} }()
				_ = processor.Attempt(ctx, d.ID)
			}()
		}
		for i := 0; i < 4; i++ {
			<-done
		}

		assert.Equal(t, int64(1), hits.Load())
	})
}

func TestTest(t *testing.T) {
	ctx := context.Background()

	t.Run("sends a single-attempt test delivery", func(t *testing.T) {
		var received []byte
		var sig string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			received, _ = io.ReadAll(r.Body)
			sig = r.Header.Get("X-Signature")
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		notifier := mocks.NewNotifier(t)
		processor := newProcessor(repo, notifier)

		sub := storeSubscriber(t, repo, server.URL, 3)

		d, err := processor.Test(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Sent, d.Status)
		assert.Equal(t, 1, d.Attempts)
		assert.Equal(t, 1, d.MaxAttempts)
		assert.True(t, signature.Verify(received, sig, sub.Secret))
		assert.Contains(t, string(received), "webhook.test")
	})

	t.Run("works for disabled subscribers", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		repo := memory.NewRepository()
		notifier := mocks.NewNotifier(t)
		processor := newProcessor(repo, notifier)

		sub := storeSubscriber(t, repo, server.URL, 3)
		sub.Enabled = false
		require.NoError(t, repo.UpdateSubscriber(ctx, sub))

		d, err := processor.Test(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Sent, d.Status)
	})

	t.Run("unreachable endpoint fails immediately", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		repo := memory.NewRepository()
		notifier := mocks.NewNotifier(t)
		notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, dispatch.SeverityError).Return(nil).Once()
		processor := newProcessor(repo, notifier)

		sub := storeSubscriber(t, repo, server.URL, 3)

		d, err := processor.Test(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, webhook.Failed, d.Status)
		assert.Equal(t, 1, d.Attempts)
		assert.NotEmpty(t, d.LastError)
	})

	t.Run("unknown subscriber", func(t *testing.T) {
		repo := memory.NewRepository()
		notifier := mocks.NewNotifier(t)
		processor := newProcessor(repo, notifier)

		_, err := processor.Test(ctx, "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, webhook.ErrNotFound)
	})
}
