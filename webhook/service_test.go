package webhook_test

import (
	"context"
	"testing"

	"github.com/caseflow/webhook-outbox/webhook"
	"github.com/caseflow/webhook-outbox/webhook/mocks"
	"github.com/caseflow/webhook-outbox/webhook/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("success - generates secret when none supplied", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		repo.On("StoreSubscriber", ctx, webhook.MatchSubscriber(func(sub webhook.Subscriber) bool {
			return sub.URL == "https://crm.example.com/hooks" &&
				len(sub.Secret) == signature.SecretLength &&
				sub.Enabled &&
				sub.RetryAttempts == webhook.DefaultRetryAttempts &&
				sub.TimeoutSeconds == webhook.DefaultTimeoutSeconds
		})).Return(nil)

		sub, err := service.Register(ctx, "https://crm.example.com/hooks", []string{"complaint.created"}, webhook.RegisterOptions{})

		require.NoError(t, err)
		assert.NotEmpty(t, sub.ID)
		assert.Len(t, sub.Secret, signature.SecretLength)
		assert.True(t, sub.Enabled)
		repo.AssertExpectations(t)
	})

	t.Run("success - preserves supplied secret exactly", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		repo.On("StoreSubscriber", ctx, webhook.MatchSubscriber(func(sub webhook.Subscriber) bool {
			return sub.Secret == "my-shared-secret"
		})).Return(nil)

		sub, err := service.Register(ctx, "https://crm.example.com/hooks", nil, webhook.RegisterOptions{
			Secret: "my-shared-secret",
		})

		require.NoError(t, err)
		assert.Equal(t, "my-shared-secret", sub.Secret)
	})

	t.Run("success - disabled on request", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		disabled := false
		repo.On("StoreSubscriber", ctx, webhook.MatchSubscriber(func(sub webhook.Subscriber) bool {
			return !sub.Enabled
		})).Return(nil)

		sub, err := service.Register(ctx, "https://crm.example.com/hooks", nil, webhook.RegisterOptions{
			Enabled: &disabled,
		})

		require.NoError(t, err)
		assert.False(t, sub.Enabled)
	})

	t.Run("invalid URL", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		_, err := service.Register(ctx, "not-a-url", nil, webhook.RegisterOptions{})

		require.Error(t, err)
		assert.True(t, webhook.IsValidation(err))
	})

	t.Run("invalid scheme", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		_, err := service.Register(ctx, "ftp://example.com/hooks", nil, webhook.RegisterOptions{})

		require.Error(t, err)
		assert.True(t, webhook.IsValidation(err))
	})

	t.Run("invalid event type", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		_, err := service.Register(ctx, "https://crm.example.com/hooks", []string{"complaint created!"}, webhook.RegisterOptions{})

		require.Error(t, err)
		assert.True(t, webhook.IsValidation(err))
	})

	t.Run("negative retry attempts", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		_, err := service.Register(ctx, "https://crm.example.com/hooks", nil, webhook.RegisterOptions{
			RetryAttempts: -1,
		})

		require.Error(t, err)
		assert.True(t, webhook.IsValidation(err))
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	existing := webhook.Subscriber{
		ID:             "sub-123",
		URL:            "https://old.example.com/hooks",
		Events:         []string{"complaint.created"},
		Secret:         "original-secret",
		Enabled:        true,
		RetryAttempts:  3,
		TimeoutSeconds: 10,
		SuccessCount:   7,
		FailureCount:   2,
	}

	t.Run("success - partial update leaves other fields alone", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		newURL := "https://new.example.com/hooks"
		repo.On("GetSubscriber", ctx, "sub-123").Return(existing, nil)
		repo.On("UpdateSubscriber", ctx, webhook.MatchSubscriber(func(sub webhook.Subscriber) bool {
			return sub.URL == newURL &&
				sub.Secret == "original-secret" &&
				sub.Enabled &&
				sub.RetryAttempts == 3
		})).Return(nil)

		sub, err := service.Update(ctx, "sub-123", webhook.UpdateFields{URL: &newURL})

		require.NoError(t, err)
		assert.Equal(t, newURL, sub.URL)
		assert.Equal(t, "original-secret", sub.Secret)
		repo.AssertExpectations(t)
	})

	t.Run("success - disable subscriber", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		disabled := false
		repo.On("GetSubscriber", ctx, "sub-123").Return(existing, nil)
		repo.On("UpdateSubscriber", ctx, webhook.MatchSubscriber(func(sub webhook.Subscriber) bool {
			return !sub.Enabled
		})).Return(nil)

		sub, err := service.Update(ctx, "sub-123", webhook.UpdateFields{Enabled: &disabled})

		require.NoError(t, err)
		assert.False(t, sub.Enabled)
	})

	t.Run("not found", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		repo.On("GetSubscriber", ctx, "missing").Return(webhook.Subscriber{}, webhook.ErrNotFound)

		newURL := "https://new.example.com/hooks"
		_, err := service.Update(ctx, "missing", webhook.UpdateFields{URL: &newURL})

		require.Error(t, err)
		assert.ErrorIs(t, err, webhook.ErrNotFound)
	})

	t.Run("invalid replacement URL", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		repo.On("GetSubscriber", ctx, "sub-123").Return(existing, nil)

		badURL := "://nope"
		_, err := service.Update(ctx, "sub-123", webhook.UpdateFields{URL: &badURL})

		require.Error(t, err)
		assert.True(t, webhook.IsValidation(err))
	})

	t.Run("zero retry attempts rejected", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		repo.On("GetSubscriber", ctx, "sub-123").Return(existing, nil)

		zero := 0
		_, err := service.Update(ctx, "sub-123", webhook.UpdateFields{RetryAttempts: &zero})

		require.Error(t, err)
		assert.True(t, webhook.IsValidation(err))
	})
}

func TestStats(t *testing.T) {
	ctx := context.Background()

	t.Run("single subscriber", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		repo.On("GetSubscriber", ctx, "sub-123").Return(webhook.Subscriber{
			ID:           "sub-123",
			SuccessCount: 9,
			FailureCount: 1,
		}, nil)

		stats, err := service.Stats(ctx, "sub-123")

		require.NoError(t, err)
		assert.Equal(t, int64(9), stats.SuccessCount)
		assert.Equal(t, int64(1), stats.FailureCount)
		assert.InDelta(t, 0.9, stats.SuccessRate, 0.0001)
	})

	t.Run("aggregate across all subscribers", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		repo.On("ListSubscribers", ctx).Return([]webhook.Subscriber{
			{ID: "a", SuccessCount: 3, FailureCount: 1},
			{ID: "b", SuccessCount: 5, FailureCount: 1},
		}, nil)

		stats, err := service.Stats(ctx, "")

		require.NoError(t, err)
		assert.Equal(t, int64(8), stats.SuccessCount)
		assert.Equal(t, int64(2), stats.FailureCount)
		assert.InDelta(t, 0.8, stats.SuccessRate, 0.0001)
	})

	t.Run("no attempts yet - rate is zero", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		repo.On("ListSubscribers", ctx).Return([]webhook.Subscriber{}, nil)

		stats, err := service.Stats(ctx, "")

		require.NoError(t, err)
		assert.Zero(t, stats.SuccessRate)
	})

	t.Run("unknown subscriber", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := webhook.NewService(repo)

		repo.On("GetSubscriber", ctx, "missing").Return(webhook.Subscriber{}, webhook.ErrNotFound)

		_, err := service.Stats(ctx, "missing")

		require.Error(t, err)
		assert.ErrorIs(t, err, webhook.ErrNotFound)
	})
}

func TestMatches(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		sub := webhook.Subscriber{Events: []string{"complaint.created", "complaint.updated"}}
		assert.True(t, sub.Matches("complaint.created"))
	})

	t.Run("case sensitive", func(t *testing.T) {
		sub := webhook.Subscriber{Events: []string{"complaint.created"}}
		assert.False(t, sub.Matches("Complaint.Created"))
	})

	t.Run("no prefix matching", func(t *testing.T) {
		sub := webhook.Subscriber{Events: []string{"complaint"}}
		assert.False(t, sub.Matches("complaint.created"))
	})

	t.Run("empty event list matches everything", func(t *testing.T) {
		sub := webhook.Subscriber{}
		assert.True(t, sub.Matches("anything.at_all"))
	})
}
