// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/mia-platform/odp/internal/config"

	// registered source handlers
	_ "github.com/mia-platform/odp/internal/source/epidemiology"
	_ "github.com/mia-platform/odp/internal/source/mobility"
)

const pipelineFileName = "config.yaml"

var (
	errNoArguments        = errors.New("no pipeline configuration provided")
	errNoPipelineFound    = errors.New("no pipeline configuration found")
	errInvalidEnvironment = errors.New("environment variables not valid")

	configFileExtensions = []string{"yaml", "yml"}
)

// envConfig holds the settings shared by the commands that execute pipelines.
type envConfig struct {
	DataDir        string `env:"ODP_DATA_DIR" envDefault:"."`
	MaxConcurrency int    `env:"ODP_MAX_CONCURRENCY" envDefault:"4"`
	HistoryPath    string `env:"ODP_HISTORY_PATH"`
}

func loadEnvConfig() (envConfig, error) {
	cfg, err := env.ParseAs[envConfig]()
	if err != nil {
		return envConfig{}, fmt.Errorf("%w: %w", errInvalidEnvironment, err)
	}
	if cfg.MaxConcurrency < 1 {
		return envConfig{}, fmt.Errorf("%w: ODP_MAX_CONCURRENCY must be at least 1", errInvalidEnvironment)
	}
	return cfg, nil
}

// handleError will do custom print error handling based on the type of error received.
// it will return nil if the command must return 0 exit code, otherwise it will return
// the original error.
func handleError(cmd *cobra.Command, err error) error {
	switch {
	case errors.Is(err, errNoArguments):
		_ = cmd.Usage() // do not check error as we cannot do much about it
		return nil
	default:
		cmd.PrintErrln(err)
		return err
	}
}

// unwrappedError returns the unwrapped error if available, otherwise it returns the original error.
func unwrappedError(err error) error {
	if unwrapped := errors.Unwrap(err); unwrapped != nil {
		return unwrapped
	}

	return err
}

// configFileCompletion completes the first argument with configuration files.
func configFileCompletion(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return configFileExtensions, cobra.ShellCompDirectiveFilterFileExt
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

// sourceNameCompletion completes the handler names declared in the configuration
// file passed as first argument.
func sourceNameCompletion(_ *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	document, err := config.LoadDocument(args[0])
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var comps []string
	if cfg, err := document.Config(); err == nil {
		for _, name := range cfg.SourceNames() {
			if strings.HasPrefix(name, toComplete) {
				comps = append(comps, cobra.CompletionWithDesc(name, "enabled source"))
			}
		}
	}
	for _, disabled := range document.DisabledSources() {
		if strings.HasPrefix(disabled.Source.Name, toComplete) {
			comps = append(comps, cobra.CompletionWithDesc(disabled.Source.Name, "disabled source"))
		}
	}
	return comps, cobra.ShellCompDirectiveNoFileComp
}

// collectPaths expands the arguments into configuration files. Files are kept as
// they are, directories are walked looking for files named config.yaml.
func collectPaths(paths []string) ([]string, error) {
	collected := make([]string, 0)
	for _, p := range paths {
		cleanedPath := filepath.Clean(p)
		err := filepath.WalkDir(cleanedPath, func(walkedPath string, entry fs.DirEntry, err error) error {
			if err != nil {
				return fmt.Errorf("pipeline configuration %q: %w", walkedPath, unwrappedError(err))
			}

			switch {
			case walkedPath == cleanedPath && !entry.IsDir():
				collected = append(collected, walkedPath)
			case !entry.IsDir() && entry.Name() == pipelineFileName:
				collected = append(collected, walkedPath)
			}

			return nil
		})

		if err != nil {
			return nil, err
		}
	}

	if len(collected) == 0 {
		return nil, fmt.Errorf("%w in %s", errNoPipelineFound, strings.Join(paths, ", "))
	}
	return collected, nil
}
