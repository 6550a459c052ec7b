package webhook

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/caseflow/webhook-outbox/event"
	"github.com/caseflow/webhook-outbox/webhook/signature"
	"github.com/google/uuid"
)

const (
	// DefaultRetryAttempts is the maximum attempts when none is configured
	DefaultRetryAttempts = 3
	// DefaultTimeoutSeconds bounds each HTTP attempt when none is configured
	DefaultTimeoutSeconds = 10
)

// UseCase defines the registry operations for webhook subscriptions
type UseCase interface {
	Register(ctx context.Context, targetURL string, events []string, opts RegisterOptions) (Subscriber, error)
	Get(ctx context.Context, id string) (Subscriber, error)
	List(ctx context.Context) ([]Subscriber, error)
	Update(ctx context.Context, id string, fields UpdateFields) (Subscriber, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context, id string) (Stats, error)
}

// RegisterOptions carries the optional fields of a registration
type RegisterOptions struct {
	Secret         string
	Enabled        *bool
	RetryAttempts  int
	TimeoutSeconds int
	CustomHeaders  []Header
}

/* UpdateFields is the whitelist of mutable subscriber fields. Nil means
 * "leave unchanged". The secret is deliberately absent: it is immutable
 * after creation.
 */
type UpdateFields struct {
	URL            *string  `json:"url,omitempty"`
	Events         []string `json:"events,omitempty"`
	Enabled        *bool    `json:"enabled,omitempty"`
	RetryAttempts  *int     `json:"retry_attempts,omitempty"`
	TimeoutSeconds *int     `json:"timeout_seconds,omitempty"`
	CustomHeaders  []Header `json:"custom_headers,omitempty"`
}

/* Service is the business logic layer for the subscriber registry.
 * Uses pointer semantics as it's an API, not data.
 */
type Service struct {
	Repo Repository
}

// NewService creates a new registry service with dependency injection
func NewService(repo Repository) *Service {
	return &Service{
		Repo: repo,
	}
}

// Register creates a subscription. A signing secret is generated when none
// is supplied; an explicit secret is preserved exactly.
func (s *Service) Register(ctx context.Context, targetURL string, events []string, opts RegisterOptions) (Subscriber, error) {
	if err := validateURL(targetURL); err != nil {
		return Subscriber{}, err
	}
	if err := validateEvents(events); err != nil {
		return Subscriber{}, err
	}

	secret := opts.Secret
	if secret == "" {
		generated, err := signature.GenerateSecret()
		if err != nil {
			return Subscriber{}, fmt.Errorf("generating secret: %w", err)
		}
		secret = generated
	}

	enabled := true
	if opts.Enabled != nil {
		enabled = *opts.Enabled
	}

	retryAttempts := opts.RetryAttempts
	if retryAttempts == 0 {
		retryAttempts = DefaultRetryAttempts
	}
	if retryAttempts < 1 {
		return Subscriber{}, &ValidationError{Field: "retry_attempts", Reason: "must be at least 1"}
	}

	timeoutSeconds := opts.TimeoutSeconds
	if timeoutSeconds == 0 {
		timeoutSeconds = DefaultTimeoutSeconds
	}
	if timeoutSeconds < 1 {
		return Subscriber{}, &ValidationError{Field: "timeout_seconds", Reason: "must be at least 1"}
	}

	sub := Subscriber{
		ID:             uuid.New().String(),
		URL:            targetURL,
		Events:         events,
		Secret:         secret,
		Enabled:        enabled,
		RetryAttempts:  retryAttempts,
		TimeoutSeconds: timeoutSeconds,
		CustomHeaders:  opts.CustomHeaders,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.Repo.StoreSubscriber(ctx, sub); err != nil {
		return Subscriber{}, fmt.Errorf("storing subscriber: %w", err)
	}

	return sub, nil
}

// Get retrieves a subscriber by id
func (s *Service) Get(ctx context.Context, id string) (Subscriber, error) {
	sub, err := s.Repo.GetSubscriber(ctx, id)
	if err != nil {
		return Subscriber{}, fmt.Errorf("getting subscriber: %w", err)
	}
	return sub, nil
}

// List returns all registered subscribers
func (s *Service) List(ctx context.Context) ([]Subscriber, error) {
	subs, err := s.Repo.ListSubscribers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing subscribers: %w", err)
	}
	return subs, nil
}

// Update applies the whitelisted fields to an existing subscriber
func (s *Service) Update(ctx context.Context, id string, fields UpdateFields) (Subscriber, error) {
	sub, err := s.Repo.GetSubscriber(ctx, id)
	if err != nil {
		return Subscriber{}, fmt.Errorf("getting subscriber: %w", err)
	}

	if fields.URL != nil {
		if err := validateURL(*fields.URL); err != nil {
			return Subscriber{}, err
		}
		sub.URL = *fields.URL
	}
	if fields.Events != nil {
		if err := validateEvents(fields.Events); err != nil {
			return Subscriber{}, err
		}
		sub.Events = fields.Events
	}
	if fields.Enabled != nil {
		sub.Enabled = *fields.Enabled
	}
	if fields.RetryAttempts != nil {
		if *fields.RetryAttempts < 1 {
			return Subscriber{}, &ValidationError{Field: "retry_attempts", Reason: "must be at least 1"}
		}
		sub.RetryAttempts = *fields.RetryAttempts
	}
	if fields.TimeoutSeconds != nil {
		if *fields.TimeoutSeconds < 1 {
			return Subscriber{}, &ValidationError{Field: "timeout_seconds", Reason: "must be at least 1"}
		}
		sub.TimeoutSeconds = *fields.TimeoutSeconds
	}
	if fields.CustomHeaders != nil {
		sub.CustomHeaders = fields.CustomHeaders
	}

	if err := s.Repo.UpdateSubscriber(ctx, sub); err != nil {
		return Subscriber{}, fmt.Errorf("updating subscriber: %w", err)
	}

	return sub, nil
}

// Delete removes a subscription
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.Repo.DeleteSubscriber(ctx, id); err != nil {
		return fmt.Errorf("deleting subscriber: %w", err)
	}
	return nil
}

// Stats returns delivery statistics for one subscriber, or the aggregate
// over all subscribers when id is empty.
func (s *Service) Stats(ctx context.Context, id string) (Stats, error) {
	if id != "" {
		sub, err := s.Repo.GetSubscriber(ctx, id)
		if err != nil {
			return Stats{}, fmt.Errorf("getting subscriber: %w", err)
		}
		return NewStats(sub.ID, sub.SuccessCount, sub.FailureCount), nil
	}

	subs, err := s.Repo.ListSubscribers(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("listing subscribers: %w", err)
	}

	var success, failure int64
	for _, sub := range subs {
		success += sub.SuccessCount
		failure += sub.FailureCount
	}
	return NewStats("", success, failure), nil
}

func validateURL(targetURL string) error {
	if targetURL == "" {
		return &ValidationError{Field: "url", Reason: "cannot be empty"}
	}
	parsed, err := url.Parse(targetURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return &ValidationError{Field: "url", Reason: "must be an absolute http or https URL"}
	}
	return nil
}

func validateEvents(events []string) error {
	for _, e := range events {
		if err := event.ValidateType(e); err != nil {
			return &ValidationError{Field: "events", Reason: err.Error()}
		}
	}
	return nil
}
