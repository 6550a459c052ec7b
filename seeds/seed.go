package seeds

import (
	"fmt"
	"net/url"

	"github.com/caseflow/webhook-outbox/event"
	"github.com/caseflow/webhook-outbox/webhook"
)

/* Seed is one statically configured webhook subscription, registered at
 * boot when no subscriber with the same URL exists yet. Lets a deployment
 * ship with its integration endpoints pre-wired instead of requiring API
 * calls after every fresh install.
 */
type Seed struct {
	URL            string         `yaml:"url"`
	Events         []string       `yaml:"events"`
	Secret         string         `yaml:"secret"`
	Disabled       bool           `yaml:"disabled"`
	RetryAttempts  int            `yaml:"retry_attempts"`
	TimeoutSeconds int            `yaml:"timeout_seconds"`
	CustomHeaders  []HeaderConfig `yaml:"custom_headers"`
}

// HeaderConfig is a custom header entry in the seeds file
type HeaderConfig struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Validate checks if the seed configuration is valid
func (s *Seed) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("url cannot be empty")
	}
	parsed, err := url.Parse(s.URL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("url must be an absolute http or https URL: %s", s.URL)
	}
	for _, e := range s.Events {
		if err := event.ValidateType(e); err != nil {
			return fmt.Errorf("invalid event type for seed %s: %w", s.URL, err)
		}
	}
	if s.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts cannot be negative for seed %s", s.URL)
	}
	if s.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds cannot be negative for seed %s", s.URL)
	}
	for _, h := range s.CustomHeaders {
		if h.Name == "" {
			return fmt.Errorf("custom header name cannot be empty for seed %s", s.URL)
		}
	}
	return nil
}

// Headers converts the yaml header entries to domain headers
func (s *Seed) Headers() []webhook.Header {
	if len(s.CustomHeaders) == 0 {
		return nil
	}
	headers := make([]webhook.Header, 0, len(s.CustomHeaders))
	for _, h := range s.CustomHeaders {
		headers = append(headers, webhook.Header{Name: h.Name, Value: h.Value})
	}
	return headers
}
