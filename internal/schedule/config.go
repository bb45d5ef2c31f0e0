// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// ErrInvalidConfig reports an unusable schedule configuration.
var ErrInvalidConfig = errors.New("invalid schedule configuration")

// Config holds the scheduling settings.
type Config struct {
	// Schedule is a standard cron expression or descriptor such as "@daily";
	// empty disables scheduled runs.
	Schedule string `env:"ODP_SCHEDULE"`
	// ReloadDebounce groups the file events received in a short burst into a single reload.
	ReloadDebounce time.Duration `env:"ODP_RELOAD_DEBOUNCE" envDefault:"500ms"`
	// WatchConfig enables reloading the configuration files when they change.
	WatchConfig bool `env:"ODP_WATCH_CONFIG" envDefault:"true"`
}

// LoadConfig reads the scheduling settings from the environment.
func LoadConfig() (Config, error) {
	config, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return config, config.Validate()
}

// Validate checks the cron expression.
func (c Config) Validate() error {
	if c.Schedule != "" {
		if _, err := cron.ParseStandard(c.Schedule); err != nil {
			return fmt.Errorf("%w: ODP_SCHEDULE: %w", ErrInvalidConfig, err)
		}
	}
	if c.ReloadDebounce < 0 {
		return fmt.Errorf("%w: ODP_RELOAD_DEBOUNCE must not be negative", ErrInvalidConfig)
	}
	return nil
}
