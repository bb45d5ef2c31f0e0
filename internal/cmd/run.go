// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"io"

	"github.com/mia-platform/odp/internal/destination/targets"
	"github.com/mia-platform/odp/internal/fetch"
	"github.com/mia-platform/odp/internal/history"
	"github.com/mia-platform/odp/internal/logger"
	"github.com/mia-platform/odp/internal/notify"
	"github.com/mia-platform/odp/internal/pipeline"
	"github.com/mia-platform/odp/internal/service"
)

const runLoggerName = "odp:run"

// runOptions holds the options set for the current run function.
type runOptions struct {
	path           string
	dataDir        string
	outputs        []string
	testMode       bool
	sources        []string
	maxConcurrency int
	historyPath    string
	stdout         io.Writer
}

// execute fetches, parses and merges the sources of a single pipeline and sends the
// output to the requested targets, standard output when none is given.
func (o *runOptions) execute(ctx context.Context) error {
	log := logger.Named(ctx, runLoggerName)

	fetchConfig, err := fetch.LoadConfig()
	if err != nil {
		return err
	}
	fetcher, err := fetch.New(fetchConfig)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	outputs := o.outputs
	if len(outputs) == 0 {
		outputs = []string{targets.Stdout}
	}
	senders, err := targets.OpenAll(ctx, outputs, o.stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := targets.CloseAll(senders); err != nil {
			log.Warn("error closing outputs", "error", err.Error())
		}
	}()

	notifyConfig, err := notify.LoadConfig()
	if err != nil {
		return err
	}
	notifiers, err := notify.New(ctx, notifyConfig)
	if err != nil {
		return err
	}
	defer notifiers.Close(ctx)

	opts := service.Options{
		DataDir:        o.dataDir,
		Fetcher:        fetcher,
		Destinations:   senders,
		MaxConcurrency: o.maxConcurrency,
		Notifier:       notifiers,
	}
	if o.historyPath != "" {
		store, err := history.Open(ctx, o.historyPath)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.History = store
	}

	svc := service.New(opts)
	if err := svc.Load(ctx, o.path); err != nil {
		return err
	}

	report, err := svc.Run(ctx, service.NameFromPath(o.path), pipeline.RunOptions{
		TestMode: o.testMode,
		Sources:  o.sources,
	})
	if report != nil {
		log.Info("run summary",
			"pipeline", report.Pipeline,
			"succeeded", report.Succeeded(),
			"failed", report.Failures(),
			"rows", report.OutputRows,
		)
	}
	return err
}
