// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"github.com/spf13/cobra"
)

const (
	dataDirFlagName  = "data-dir"
	dataDirFlagShort = "d"
	dataDirFlagUsage = "Directory the auxiliary paths are relative to, overrides ODP_DATA_DIR."

	outputFlagName  = "output"
	outputFlagShort = "o"
	outputFlagUsage = "Destination of the output table, as a target string. Can be specified multiple times."

	testFlagName  = "test"
	testFlagUsage = "Run in test mode, skipping the sources marked with test.skip."

	sourceFlagName  = "source"
	sourceFlagShort = "s"
	sourceFlagUsage = "Run only the sources with this handler name. Can be specified multiple times."

	schemaFieldFlagName  = "schema-field"
	schemaFieldFlagUsage = "Toggle a schema field instead of a source."

	defaultServeOutput = "output"
)

// runFlags collects the options of the run command.
type runFlags struct {
	dataDir  string
	outputs  []string
	testMode bool
	sources  []string
}

// addFlags registers the CLI flags on cmd.
func (f *runFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dataDir, dataDirFlagName, dataDirFlagShort, "", dataDirFlagUsage)
	cmd.Flags().StringArrayVarP(&f.outputs, outputFlagName, outputFlagShort, nil, outputFlagUsage)
	cmd.Flags().BoolVar(&f.testMode, testFlagName, false, testFlagUsage)
	cmd.Flags().StringArrayVarP(&f.sources, sourceFlagName, sourceFlagShort, nil, sourceFlagUsage)

	_ = cmd.RegisterFlagCompletionFunc(sourceFlagName, sourceNameCompletion)
}

// toOptions builds the run options from the parsed flags and CLI arguments.
func (f *runFlags) toOptions(cmd *cobra.Command, args []string) (*runOptions, error) {
	if len(args) == 0 {
		return nil, errNoArguments
	}

	env, err := loadEnvConfig()
	if err != nil {
		return nil, err
	}

	dataDir := env.DataDir
	if f.dataDir != "" {
		dataDir = f.dataDir
	}

	return &runOptions{
		path:           args[0],
		dataDir:        dataDir,
		outputs:        f.outputs,
		testMode:       f.testMode,
		sources:        f.sources,
		maxConcurrency: env.MaxConcurrency,
		historyPath:    env.HistoryPath,
		stdout:         cmd.OutOrStdout(),
	}, nil
}

// validateFlags collects the options of the validate command.
type validateFlags struct {
	dataDir string
}

func (f *validateFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dataDir, dataDirFlagName, dataDirFlagShort, "", dataDirFlagUsage)
}

// editFlags collects the options of the enable and disable commands.
type editFlags struct {
	schemaField bool
}

func (f *editFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.schemaField, schemaFieldFlagName, false, schemaFieldFlagUsage)
}

// serveFlags collects the options of the serve command.
type serveFlags struct {
	dataDir string
	outputs []string
}

func (f *serveFlags) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.dataDir, dataDirFlagName, dataDirFlagShort, "", dataDirFlagUsage)
	cmd.Flags().StringArrayVarP(&f.outputs, outputFlagName, outputFlagShort, []string{defaultServeOutput}, outputFlagUsage)
}
