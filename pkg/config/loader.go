// Package config fills tagged configuration structs from the process
// environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load fills cfg, a pointer to a struct with `env` and `envDefault` tags,
// from the environment. Values convert by field type, so durations and
// separated lists need no extra code. An unset `required` variable or a value
// that does not convert fails the whole load.
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
