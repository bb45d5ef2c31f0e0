// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
)

const (
	runCmdUsage = "run PIPELINE_FILE"
	runCmdShort = "run a pipeline once"
	runCmdLong  = `Run a pipeline once.
	Every enabled source is fetched, parsed and conformed to the schema, then the
	tables are merged by key and date, with later sources overriding earlier ones.
	A failing source does not stop the others; the command fails only when every
	executed source failed or when an output cannot be written.

	Outputs are target strings:
	- "-" or "stdout:?format=json" write to the standard output
	- a path or "file:///dir?format=parquet" write a file named after the pipeline
	- "sqlite:///path.db?table=name" and "postgres://..." replace a database table
	- "gs://bucket/prefix", "azblob://container/prefix" and "s3://bucket/prefix" upload an object
	- "https://endpoint" posts the rows to a catalog endpoint`

	runCmdExample = `# Run the epidemiology pipeline printing csv to the standard output
	odp run pipelines/epidemiology/config.yaml

	# Run only the google source in test mode writing a parquet file
	odp run pipelines/mobility/config.yaml --test \
		--source pipelines.mobility.google_mobility.GoogleMobilityDataSource \
		--output "file:///var/lib/odp?format=parquet"`

	validateCmdUsage = "validate PIPELINE_FILE"
	validateCmdShort = "check a pipeline configuration without fetching anything"
	validateCmdLong  = `Check a pipeline configuration without fetching anything.
	The document is parsed, the schema types are checked, every source name must
	resolve to a registered handler and every auxiliary table must be readable.`

	validateCmdExample = `# Validate the mobility pipeline
	odp validate pipelines/mobility/config.yaml --data-dir .`

	sourcesCmdUsage = "sources PIPELINE_FILE"
	sourcesCmdShort = "list the enabled and disabled schema fields and sources"
	sourcesCmdLong  = `List the enabled and disabled schema fields and sources.
	Schema fields and sources are disabled by commenting them out in the file.`

	sourcesCmdExample = `# List the sources of the mobility pipeline
	odp sources pipelines/mobility/config.yaml`

	enableCmdUsage = "enable PIPELINE_FILE NAME"
	enableCmdShort = "uncomment a disabled source or schema field"
	enableCmdLong  = `Uncomment a disabled source or schema field.
	Only the lines of the entry change, every other line of the file is preserved.`

	enableCmdExample = `# Enable the apple mobility source
	odp enable pipelines/mobility/config.yaml pipelines.mobility.apple_mobility.AppleMobilityDataSource

	# Enable a schema field
	odp enable pipelines/mobility/config.yaml mobility_driving --schema-field`

	disableCmdUsage = "disable PIPELINE_FILE NAME"
	disableCmdShort = "comment out a source or schema field"
	disableCmdLong  = `Comment out a source or schema field.
	Only the lines of the entry change, every other line of the file is preserved.`

	disableCmdExample = `# Disable the google mobility source
	odp disable pipelines/mobility/config.yaml pipelines.mobility.google_mobility.GoogleMobilityDataSource`

	serveCmdUsage = "serve PIPELINE_FILE|DIRECTORY..."
	serveCmdShort = "serve pipelines over HTTP and run them on a schedule"
	serveCmdLong  = `Serve pipelines over HTTP and run them on a schedule.
	Directories are searched for files named config.yaml. Runs can be triggered with
	POST /pipelines/{name}/runs and are listed by GET /runs. When ODP_SCHEDULE holds a
	cron expression every pipeline runs on it. Configuration files are reloaded when
	they change; an invalid edit is reported and the previous configuration is kept.`

	serveCmdExample = `# Serve every pipeline of the repository, running them every day at 6
	ODP_SCHEDULE="0 6 * * *" odp serve pipelines --output gs://odp-public/v3`
)

// RunCmd returns the "run" cli command executing one pipeline.
func RunCmd() *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:     runCmdUsage,
		Short:   heredoc.Doc(runCmdShort),
		Long:    heredoc.Doc(runCmdLong),
		Example: heredoc.Doc(runCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: configFileCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.toOptions(cmd, args)
			if err != nil {
				return handleError(cmd, err)
			}

			if err := opts.execute(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}

// ValidateCmd returns the "validate" cli command.
func ValidateCmd() *cobra.Command {
	flags := &validateFlags{}
	cmd := &cobra.Command{
		Use:     validateCmdUsage,
		Short:   heredoc.Doc(validateCmdShort),
		Long:    heredoc.Doc(validateCmdLong),
		Example: heredoc.Doc(validateCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: configFileCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return handleError(cmd, errNoArguments)
			}

			env, err := loadEnvConfig()
			if err != nil {
				return handleError(cmd, err)
			}
			dataDir := env.DataDir
			if flags.dataDir != "" {
				dataDir = flags.dataDir
			}

			opts := &validateOptions{path: args[0], dataDir: dataDir, stdout: cmd.OutOrStdout()}
			if err := opts.execute(cmd.Context()); err != nil {
				return handleError(cmd, err)
			}
			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}

// SourcesCmd returns the "sources" cli command.
func SourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     sourcesCmdUsage,
		Short:   heredoc.Doc(sourcesCmdShort),
		Long:    heredoc.Doc(sourcesCmdLong),
		Example: heredoc.Doc(sourcesCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: configFileCompletion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return handleError(cmd, errNoArguments)
			}

			opts := &sourcesOptions{path: args[0], stdout: cmd.OutOrStdout()}
			if err := opts.execute(); err != nil {
				return handleError(cmd, err)
			}
			return nil
		},
	}
}

// EnableCmd returns the "enable" cli command.
func EnableCmd() *cobra.Command {
	return editCmd(enableCmdUsage, enableCmdShort, enableCmdLong, enableCmdExample, true)
}

// DisableCmd returns the "disable" cli command.
func DisableCmd() *cobra.Command {
	return editCmd(disableCmdUsage, disableCmdShort, disableCmdLong, disableCmdExample, false)
}

func editCmd(use, short, long, example string, enable bool) *cobra.Command {
	flags := &editFlags{}
	cmd := &cobra.Command{
		Use:     use,
		Short:   heredoc.Doc(short),
		Long:    heredoc.Doc(long),
		Example: heredoc.Doc(example),

		SilenceErrors: true,
		SilenceUsage:  true,

		Args: cobra.MaximumNArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return configFileCompletion(cmd, args, toComplete)
			}
			if len(args) == 1 && !flags.schemaField {
				return sourceNameCompletion(cmd, args, toComplete)
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return handleError(cmd, errNoArguments)
			}

			opts := &editOptions{
				path:        args[0],
				name:        args[1],
				enable:      enable,
				schemaField: flags.schemaField,
				stdout:      cmd.OutOrStdout(),
			}
			if err := opts.execute(); err != nil {
				return handleError(cmd, err)
			}
			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}

// ServeCmd returns the "serve" cli command.
func ServeCmd() *cobra.Command {
	flags := &serveFlags{}
	cmd := &cobra.Command{
		Use:     serveCmdUsage,
		Short:   heredoc.Doc(serveCmdShort),
		Long:    heredoc.Doc(serveCmdLong),
		Example: heredoc.Doc(serveCmdExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return configFileExtensions, cobra.ShellCompDirectiveFilterFileExt
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return handleError(cmd, errNoArguments)
			}

			paths, err := collectPaths(args)
			if err != nil {
				return handleError(cmd, err)
			}

			env, err := loadEnvConfig()
			if err != nil {
				return handleError(cmd, err)
			}
			dataDir := env.DataDir
			if flags.dataDir != "" {
				dataDir = flags.dataDir
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			opts := &serveOptions{
				paths:          paths,
				dataDir:        dataDir,
				outputs:        flags.outputs,
				maxConcurrency: env.MaxConcurrency,
				historyPath:    env.HistoryPath,
				stdout:         cmd.OutOrStdout(),
			}
			if err := opts.execute(ctx); err != nil {
				return handleError(cmd, err)
			}
			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}
