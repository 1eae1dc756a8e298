// Package config loads service configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target from environment variables declared with `env`
// struct tags. Defaults come from `envDefault` tags.
func ParseEnv(target any) error {
	if target == nil {
		return fmt.Errorf("config target is required")
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
