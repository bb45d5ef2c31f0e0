// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/odp/internal/config"
	"github.com/mia-platform/odp/internal/logger"
	"github.com/mia-platform/odp/internal/pipeline"
	"github.com/mia-platform/odp/internal/server"
	fakeserver "github.com/mia-platform/odp/internal/server/fake"
	"github.com/mia-platform/odp/internal/source"
	"github.com/mia-platform/odp/internal/source/mobility"
)

var mobilityConfig = filepath.Join("testdata", "mobility", "config.yaml")

// executeCmd runs cmd with args returning its standard output and error streams.
func executeCmd(t *testing.T, ctx context.Context, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)

	ctx = logger.WithContext(ctx, logger.NewLogger(new(bytes.Buffer)))
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

// copyConfig copies the mobility configuration in a temporary directory.
func copyConfig(t *testing.T) string {
	t.Helper()

	content, err := os.ReadFile(mobilityConfig)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func TestCmdsWithoutArguments(t *testing.T) {
	t.Parallel()

	testCases := map[string]func() *cobra.Command{
		"run":      RunCmd,
		"validate": ValidateCmd,
		"sources":  SourcesCmd,
		"enable":   EnableCmd,
		"disable":  DisableCmd,
		"serve":    ServeCmd,
	}

	for testName, newCmd := range testCases {
		t.Run(testName, func(t *testing.T) {
			t.Parallel()

			stdout, _, err := executeCmd(t, t.Context(), newCmd())
			require.NoError(t, err)
			assert.Contains(t, stdout, "Usage:")
		})
	}
}

func TestRunCmd(t *testing.T) {
	t.Setenv("ODP_CACHE_DIR", t.TempDir())
	t.Setenv("ODP_DATA_DIR", "testdata")
	historyPath := filepath.Join(t.TempDir(), "history.db")
	t.Setenv("ODP_HISTORY_PATH", historyPath)

	t.Run("writes csv to the standard output", func(t *testing.T) {
		stdout, stderr, err := executeCmd(t, t.Context(), RunCmd(), mobilityConfig)
		require.NoError(t, err, stderr)

		lines := strings.Split(strings.TrimSpace(stdout), "\n")
		require.Len(t, lines, 3)
		assert.Equal(t, "date,key,mobility_parks", lines[0])
		assert.ElementsMatch(t, []string{"2020-02-15,US,15", "2020-02-15,IT,20"}, lines[1:])
		assert.FileExists(t, historyPath)
	})

	t.Run("writes json files", func(t *testing.T) {
		outputDir := t.TempDir()
		_, stderr, err := executeCmd(t, t.Context(), RunCmd(), mobilityConfig,
			"--output", "file://"+outputDir+"?format=json",
			"--test",
		)
		require.NoError(t, err, stderr)

		content, err := os.ReadFile(filepath.Join(outputDir, "mobility.json"))
		require.NoError(t, err)

		records := []map[string]any{}
		require.NoError(t, json.Unmarshal(content, &records))
		assert.Len(t, records, 2)
	})

	t.Run("source not configured", func(t *testing.T) {
		_, stderr, err := executeCmd(t, t.Context(), RunCmd(), mobilityConfig,
			"--source", mobility.AppleMobilityName,
		)
		require.ErrorIs(t, err, pipeline.ErrSourceNotConfigured)
		assert.Contains(t, stderr, mobility.AppleMobilityName)
	})

	t.Run("unknown handler", func(t *testing.T) {
		_, _, err := executeCmd(t, t.Context(), RunCmd(), filepath.Join("testdata", "unknown.yaml"))
		require.ErrorIs(t, err, source.ErrUnknownHandler)
	})

	t.Run("unsupported output", func(t *testing.T) {
		_, _, err := executeCmd(t, t.Context(), RunCmd(), mobilityConfig, "--output", "ftp://example.com/out")
		require.Error(t, err)
	})

	t.Run("invalid concurrency", func(t *testing.T) {
		t.Setenv("ODP_MAX_CONCURRENCY", "0")
		_, _, err := executeCmd(t, t.Context(), RunCmd(), mobilityConfig)
		require.ErrorIs(t, err, errInvalidEnvironment)
	})
}

func TestValidateCmd(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		args           []string
		expectedError  error
		expectedOutput string
	}{
		"valid configuration": {
			args:           []string{mobilityConfig, "--data-dir", "testdata"},
			expectedOutput: mobilityConfig + ": valid, 3 schema fields, 1 auxiliary tables, 1 sources\n",
		},
		"missing auxiliary table": {
			args:          []string{mobilityConfig, "--data-dir", filepath.Join("testdata", "mobility")},
			expectedError: config.ErrAuxiliaryPath,
		},
		"unknown handler": {
			args:          []string{filepath.Join("testdata", "unknown.yaml")},
			expectedError: source.ErrUnknownHandler,
		},
		"invalid schema": {
			args:          []string{filepath.Join("testdata", "invalid.yaml")},
			expectedError: config.ErrInvalidConfig,
		},
	}

	for testName, test := range testCases {
		t.Run(testName, func(t *testing.T) {
			t.Parallel()

			stdout, _, err := executeCmd(t, t.Context(), ValidateCmd(), test.args...)
			if test.expectedError != nil {
				require.ErrorIs(t, err, test.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expectedOutput, stdout)
		})
	}
}

func TestSourcesCmd(t *testing.T) {
	t.Parallel()

	stdout, _, err := executeCmd(t, t.Context(), SourcesCmd(), mobilityConfig)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, []string{"KIND", "NAME", "STATUS", "DETAIL"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"field", "mobility_workplaces", "disabled", "int"}, strings.Fields(lines[4]))
	assert.Equal(t, []string{"source", mobility.GoogleMobilityName, "enabled", "testdata/mobility/google.csv"}, strings.Fields(lines[5]))
	assert.Equal(t, []string{"source", mobility.AppleMobilityName, "disabled", "testdata/mobility/apple.csv"}, strings.Fields(lines[6]))
}

func TestEditCmds(t *testing.T) {
	t.Parallel()

	t.Run("toggle a source", func(t *testing.T) {
		t.Parallel()

		path := copyConfig(t)
		original, err := os.ReadFile(path)
		require.NoError(t, err)

		stdout, _, err := executeCmd(t, t.Context(), EnableCmd(), path, mobility.AppleMobilityName)
		require.NoError(t, err)
		assert.Equal(t, "source "+mobility.AppleMobilityName+" enabled\n", stdout)

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, []string{mobility.GoogleMobilityName, mobility.AppleMobilityName}, cfg.SourceNames())

		_, _, err = executeCmd(t, t.Context(), DisableCmd(), path, mobility.AppleMobilityName)
		require.NoError(t, err)

		edited, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, string(original), string(edited))
	})

	t.Run("toggle a schema field", func(t *testing.T) {
		t.Parallel()

		path := copyConfig(t)
		stdout, _, err := executeCmd(t, t.Context(), DisableCmd(), path, "mobility_parks", "--schema-field")
		require.NoError(t, err)
		assert.Equal(t, "schema field mobility_parks disabled\n", stdout)

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.False(t, cfg.HasField("mobility_parks"))

		_, _, err = executeCmd(t, t.Context(), EnableCmd(), path, "mobility_workplaces", "--schema-field")
		require.NoError(t, err)

		cfg, err = config.Load(path)
		require.NoError(t, err)
		assert.True(t, cfg.HasField("mobility_workplaces"))
	})

	t.Run("unknown entry", func(t *testing.T) {
		t.Parallel()

		path := copyConfig(t)
		_, stderr, err := executeCmd(t, t.Context(), DisableCmd(), path, "pipelines.unknown.MissingDataSource")
		require.ErrorIs(t, err, config.ErrEntryNotFound)
		assert.NotEmpty(t, stderr)
	})
}

func TestServeCmd(t *testing.T) {
	t.Setenv("ODP_CACHE_DIR", t.TempDir())
	t.Setenv("ODP_DATA_DIR", "testdata")
	t.Setenv("ODP_HISTORY_PATH", filepath.Join(t.TempDir(), "history.db"))
	t.Setenv("ODP_WATCH_CONFIG", "false")

	fakeServer := fakeserver.NewFakeServer(t)
	newServer = fakeServer.Factory()
	t.Cleanup(func() { newServer = server.NewServer })

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		_, _, err := executeCmd(t, ctx, ServeCmd(), "testdata", "--output", t.TempDir())
		errChan <- err
	}()

	select {
	case <-fakeServer.StartedServer():
	case <-time.After(10 * time.Second):
		require.FailNow(t, "server not started")
	}

	statuses := fakeServer.Pipelines().Pipelines()
	require.Len(t, statuses, 1)
	assert.Equal(t, "mobility", statuses[0].Name)

	require.NoError(t, fakeServer.Pipelines().Start(ctx, "mobility", pipeline.RunOptions{}))
	require.Eventually(t, func() bool {
		reports, err := fakeServer.Pipelines().Runs(ctx, "mobility", 1)
		return err == nil && len(reports) == 1
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-errChan)
	<-fakeServer.StoppedServer()
}
