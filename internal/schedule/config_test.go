// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	testCases := map[string]struct {
		env            map[string]string
		expectedConfig Config
		expectedError  error
	}{
		"defaults": {
			expectedConfig: Config{ReloadDebounce: 500 * time.Millisecond, WatchConfig: true},
		},
		"standard expression": {
			env: map[string]string{
				"ODP_SCHEDULE":        "0 6 * * *",
				"ODP_RELOAD_DEBOUNCE": "2s",
				"ODP_WATCH_CONFIG":    "false",
			},
			expectedConfig: Config{Schedule: "0 6 * * *", ReloadDebounce: 2 * time.Second},
		},
		"descriptor": {
			env:            map[string]string{"ODP_SCHEDULE": "@every 6h"},
			expectedConfig: Config{Schedule: "@every 6h", ReloadDebounce: 500 * time.Millisecond, WatchConfig: true},
		},
		"invalid expression": {
			env:           map[string]string{"ODP_SCHEDULE": "every morning"},
			expectedError: ErrInvalidConfig,
		},
		"invalid debounce": {
			env:           map[string]string{"ODP_RELOAD_DEBOUNCE": "soon"},
			expectedError: ErrInvalidConfig,
		},
		"negative debounce": {
			env:           map[string]string{"ODP_RELOAD_DEBOUNCE": "-1s"},
			expectedError: ErrInvalidConfig,
		},
	}

	for testName, test := range testCases {
		t.Run(testName, func(t *testing.T) {
			for key, value := range test.env {
				t.Setenv(key, value)
			}

			config, err := LoadConfig()
			if test.expectedError != nil {
				require.ErrorIs(t, err, test.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expectedConfig, config)
		})
	}
}
