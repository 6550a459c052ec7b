package seeds

import (
	"context"
	"fmt"
	"os"

	"github.com/caseflow/webhook-outbox/webhook"
	"gopkg.in/yaml.v3"
)

/* Loader reads webhooks.yaml and registers the seeds it finds.
 * Registration is idempotent on URL: a seed whose URL already has a
 * subscriber is skipped, so restarts never create duplicates.
 */

// Config represents the structure of webhooks.yaml
type Config struct {
	Webhooks []Seed `yaml:"webhooks"`
}

// Loader holds the loaded seeds
type Loader struct {
	seeds []Seed
}

// NewLoader creates a new seed loader
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the seeds file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading seeds file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing seeds YAML: %w", err)
	}

	for i := range config.Webhooks {
		if err := config.Webhooks[i].Validate(); err != nil {
			return fmt.Errorf("validating seed: %w", err)
		}
	}

	l.seeds = config.Webhooks
	return nil
}

// List returns all loaded seeds
func (l *Loader) List() []Seed {
	return l.seeds
}

// Apply registers every seed whose URL has no subscriber yet.
// Returns the number of subscriptions created.
func (l *Loader) Apply(ctx context.Context, registry webhook.UseCase) (int, error) {
	existing, err := registry.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing subscribers: %w", err)
	}

	known := make(map[string]bool, len(existing))
	for _, sub := range existing {
		known[sub.URL] = true
	}

	created := 0
	for _, seed := range l.seeds {
		if known[seed.URL] {
			continue
		}

		enabled := !seed.Disabled
		_, err := registry.Register(ctx, seed.URL, seed.Events, webhook.RegisterOptions{
			Secret:         seed.Secret,
			Enabled:        &enabled,
			RetryAttempts:  seed.RetryAttempts,
			TimeoutSeconds: seed.TimeoutSeconds,
			CustomHeaders:  seed.Headers(),
		})
		if err != nil {
			return created, fmt.Errorf("registering seed %s: %w", seed.URL, err)
		}
		created++
	}

	return created, nil
}
