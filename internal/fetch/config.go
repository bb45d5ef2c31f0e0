// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fetch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

var (
	// ErrInvalidConfig reports invalid fetcher settings.
	ErrInvalidConfig = errors.New("invalid fetch configuration")
)

// Config holds the fetcher settings read from the environment.
type Config struct {
	CacheDir   string        `env:"ODP_CACHE_DIR" envDefault:"~/.cache/odp"`
	RateLimit  float64       `env:"ODP_FETCH_RATE_LIMIT" envDefault:"5"`
	RateBurst  int           `env:"ODP_FETCH_RATE_BURST" envDefault:"2"`
	Retries    int           `env:"ODP_FETCH_RETRIES" envDefault:"3"`
	Timeout    time.Duration `env:"ODP_FETCH_TIMEOUT" envDefault:"10m"`
	ReuseCache bool          `env:"ODP_FETCH_REUSE_CACHE" envDefault:"false"`
}

// LoadConfig reads the fetcher settings from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	errorsList := make([]string, 0)
	if strings.TrimSpace(c.CacheDir) == "" {
		errorsList = append(errorsList, "ODP_CACHE_DIR must not be empty")
	}
	if c.RateLimit <= 0 {
		errorsList = append(errorsList, "ODP_FETCH_RATE_LIMIT must be greater than zero")
	}
	if c.RateBurst < 1 {
		errorsList = append(errorsList, "ODP_FETCH_RATE_BURST must be at least 1")
	}
	if c.Retries < 0 {
		errorsList = append(errorsList, "ODP_FETCH_RETRIES must not be negative")
	}
	if c.Timeout <= 0 {
		errorsList = append(errorsList, "ODP_FETCH_TIMEOUT must be greater than zero")
	}

	if len(errorsList) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errorsList, ", "))
	}
	return nil
}
