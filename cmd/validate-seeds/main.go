package main

import (
	"fmt"
	"os"

	"github.com/caseflow/webhook-outbox/seeds"
)

/* validate-seeds - Standalone CLI tool to validate webhooks.yaml
 * Usage: go run cmd/validate-seeds/main.go [webhooks.yaml]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	// Get seeds file path from args or use default
	seedsFile := "webhooks.yaml"
	if len(os.Args) > 1 {
		seedsFile = os.Args[1]
	}

	fmt.Printf("Validating seeds file: %s\n\n", seedsFile)

	loader := seeds.NewLoader()
	if err := loader.Load(seedsFile); err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	loaded := loader.List()
	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d webhook seed(s):\n", len(loaded))

	for i, seed := range loaded {
		fmt.Printf("\n%d. URL: %s\n", i+1, seed.URL)
		if len(seed.Events) == 0 {
			fmt.Printf("   Events:          (all)\n")
		} else {
			fmt.Printf("   Events:          %v\n", seed.Events)
		}
		fmt.Printf("   Disabled:        %t\n", seed.Disabled)
		if seed.RetryAttempts > 0 {
			fmt.Printf("   Retry Attempts:  %d\n", seed.RetryAttempts)
		}
		if seed.TimeoutSeconds > 0 {
			fmt.Printf("   Timeout:         %ds\n", seed.TimeoutSeconds)
		}
		if len(seed.CustomHeaders) > 0 {
			fmt.Printf("   Custom Headers:  %d\n", len(seed.CustomHeaders))
		}
		if seed.Secret != "" {
			fmt.Printf("   Secret:          (configured)\n")
		}
	}

	fmt.Printf("\n✓ All seeds are valid!\n")
	os.Exit(0)
}
