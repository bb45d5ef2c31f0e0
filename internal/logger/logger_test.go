// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	t.Parallel()

	buffer := new(bytes.Buffer)
	logger := NewLogger(buffer)

	logger.SetLevel(TRACE)
	namedLogger := logger.WithName("test_logger")
	namedLogger.Info("new log line for INFO level")
	logger.Trace("new log line for TRACE level")
	logger.SetLevel(DEBUG)
	logger.Debug("new log line for DEBUG level")
	namedLogger.Warn("new log line for WARN level")

	logger.SetLevel(ERROR)
	namedLogger.Warn("silenced log line for WARN level")
	logger.SetLevel(WARN)
	logger.Error("new log line for ERROR level")
	logger.Debug("silenced log line for TRACE level")

	logger.SetLevel(999) // invalid level; should default to INFO
	logger.Info("new log line for INFO level after invalid level set")
	namedLogger.Debug("silenced log line for DEBUG level after invalid level set")

	lines := strings.Split(buffer.String(), "\n")
	t.Logf("%v", lines)
	assert.Len(t, lines, 7) // 6 log lines plus 1 trailing empty line
}

func TestLevelStrings(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "TRACE", TRACE.String())
	assert.Equal(t, "DEBUG", DEBUG.String())
	assert.Equal(t, "INFO", INFO.String())
	assert.Equal(t, "WARN", WARN.String())
	assert.Equal(t, "ERROR", ERROR.String())
	assert.Equal(t, "Level(999)", Level(999).String())

	assert.Equal(t, TRACE, LevelFromString("TRACE"))
	assert.Equal(t, DEBUG, LevelFromString("DEBUG"))
	assert.Equal(t, INFO, LevelFromString("INFO"))
	assert.Equal(t, WARN, LevelFromString("WARN"))
	assert.Equal(t, ERROR, LevelFromString("ERROR"))
	assert.Equal(t, INFO, LevelFromString("INVALID"))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		input         string
		expected      Level
		expectedError error
	}{
		"upper case":   {input: "DEBUG", expected: DEBUG},
		"lower case":   {input: "warn", expected: WARN},
		"padded":       {input: " trace ", expected: TRACE},
		"unknown name": {input: "verbose", expected: INFO, expectedError: ErrUnknownLevel},
		"empty":        {input: "", expected: INFO, expectedError: ErrUnknownLevel},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			level, err := ParseLevel(tc.input)
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.expected, level)
		})
	}
}

func TestRootLoggerName(t *testing.T) {
	t.Parallel()

	buffer := new(bytes.Buffer)
	NewLogger(buffer).Info("started")

	line := make(map[string]any)
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &line))
	assert.Equal(t, "odp", line["@module"])
	assert.Equal(t, []Level{TRACE, DEBUG, INFO, WARN, ERROR}, Levels())
}

func TestLoggerWith(t *testing.T) {
	t.Parallel()

	buffer := new(bytes.Buffer)
	logger := NewLogger(buffer).WithName("odp:test").With("pipeline", "mobility")
	logger.Info("run completed", "rows", 3)

	line := make(map[string]any)
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &line))
	assert.Equal(t, "run completed", line["@message"])
	assert.Equal(t, "odp:test", line["@module"])
	assert.Equal(t, "mobility", line["pipeline"])
	assert.InDelta(t, 3, line["rows"], 0)
}
