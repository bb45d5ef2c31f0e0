// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	internalcmd "github.com/mia-platform/odp/internal/cmd"
	"github.com/mia-platform/odp/internal/info"
	"github.com/mia-platform/odp/internal/logger"
)

var (
	// Version is injected at build time with -ldflags.
	Version = info.Version
	// BuildDate is injected at build time with -ldflags.
	BuildDate = info.BuildDate

	appName      = info.AppName
	versionShort = "Display the " + appName + " version"
)

const (
	appShort = "odp builds open data tables from declarative pipeline configurations"
	appLong  = `odp builds open data tables from declarative pipeline configurations.
	A pipeline file declares the output schema, the auxiliary tables and the list of
	sources to fetch and parse; the results are merged by location key and date.

	Sources and schema fields are disabled by commenting them out in the pipeline file,
	the sources, enable and disable commands inspect and toggle them.`
	appExample = `# check a pipeline without fetching anything
	odp validate pipelines/mobility/config.yaml

	# run it in test mode and print the merged table
	odp run pipelines/mobility/config.yaml --test

	# serve every pipeline under pipelines/ with verbose logs
	ODP_LOG_LEVEL=debug odp serve pipelines`

	logLevelFlagName      = "log-level"
	logLevelShortFlagName = "v"

	pipelinesGroupID     = "pipelines"
	pipelinesGroupTitle  = "Pipeline Commands:"
	configurationGroupID = "configuration"
	configurationTitle   = "Configuration Commands:"

	versionCmdName = "version"
)

// rootEnv holds the settings the persistent flags fall back to.
type rootEnv struct {
	LogLevel string `env:"ODP_LOG_LEVEL" envDefault:"INFO"`
}

// rootFlags holds the persistent flags shared across the command tree.
type rootFlags struct {
	logLevel string
}

func levelNames() []string {
	names := make([]string, 0, len(logger.Levels()))
	for _, level := range logger.Levels() {
		names = append(names, level.String())
	}
	return names
}

// addFlags registers the persistent flags on cmd; defaults come from the environment.
func (f *rootFlags) addFlags(cmd *cobra.Command, defaults rootEnv) {
	usage := "set the logging level, ODP_LOG_LEVEL when not set (possible values: " + strings.Join(levelNames(), ", ") + ")"

	flags := cmd.PersistentFlags()
	flags.StringVarP(&f.logLevel, logLevelFlagName, logLevelShortFlagName, defaults.LogLevel, usage)
	_ = cmd.RegisterFlagCompletionFunc(logLevelFlagName, cobra.FixedCompletions(levelNames(), cobra.ShellCompDirectiveNoFileComp))
}

func main() {
	cmd := rootCmd()
	log := logger.NewLogger(cmd.OutOrStderr())
	ctx := logger.WithContext(context.Background(), log)

	exitCode := 0
	if err := cmd.ExecuteContext(ctx); err != nil {
		exitCode = 1
	}

	os.Exit(exitCode)
}

// rootCmd constructs the root Cobra command with shared configuration.
func rootCmd() *cobra.Command {
	flag := &rootFlags{}

	cmd := &cobra.Command{
		Use:     appName,
		Short:   heredoc.Doc(appShort),
		Long:    heredoc.Doc(appLong),
		Example: heredoc.Doc(appExample),

		SilenceErrors: true,
		SilenceUsage:  true,

		ValidArgsFunction: cobra.NoFileCompletions,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logger.ParseLevel(flag.logLevel)
			if err != nil {
				cmd.PrintErrln(err)
				return err
			}
			logger.FromContext(cmd.Context()).SetLevel(level)
			return nil
		},
	}

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		c.PrintErrln(err)
		_ = c.Usage()
		return err
	})

	defaults, err := env.ParseAs[rootEnv]()
	if err != nil {
		defaults = rootEnv{LogLevel: logger.INFO.String()}
	}
	flag.addFlags(cmd, defaults)

	cmd.AddGroup(
		&cobra.Group{ID: pipelinesGroupID, Title: pipelinesGroupTitle},
		&cobra.Group{ID: configurationGroupID, Title: configurationTitle},
	)
	addGroupCommands(cmd, pipelinesGroupID,
		internalcmd.RunCmd(),
		internalcmd.ValidateCmd(),
		internalcmd.ServeCmd(),
	)
	addGroupCommands(cmd, configurationGroupID,
		internalcmd.SourcesCmd(),
		internalcmd.EnableCmd(),
		internalcmd.DisableCmd(),
	)
	cmd.AddCommand(versionCmd())

	return cmd
}

func addGroupCommands(root *cobra.Command, groupID string, cmds ...*cobra.Command) {
	for _, cmd := range cmds {
		cmd.GroupID = groupID
		root.AddCommand(cmd)
	}
}

// versionCmd constructs the Cobra command that prints version information.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   versionCmdName,
		Short: heredoc.Doc(versionShort),

		Args: func(cmd *cobra.Command, args []string) error {
			err := cobra.NoArgs(cmd, args)
			if err != nil {
				cmd.PrintErrln(err)
				_ = cmd.Usage()
			}

			return err
		},
		ValidArgsFunction: cobra.NoFileCompletions,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), info.VersionString(Version, BuildDate, runtime.Version()))
		},
	}
}
