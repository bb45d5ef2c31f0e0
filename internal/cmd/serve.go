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
	"github.com/mia-platform/odp/internal/schedule"
	"github.com/mia-platform/odp/internal/server"
	"github.com/mia-platform/odp/internal/service"
)

const serveLoggerName = "odp:serve"

// newServer builds the HTTP server; it can be overridden for testing purposes.
var newServer = server.NewServer

// serveOptions holds the options of a long running process serving many pipelines.
type serveOptions struct {
	paths          []string
	dataDir        string
	outputs        []string
	maxConcurrency int
	historyPath    string
	stdout         io.Writer
}

// execute loads every pipeline, starts the scheduler and the HTTP server and blocks
// until ctx is done. Runs in progress are awaited before returning.
func (o *serveOptions) execute(ctx context.Context) error {
	log := logger.Named(ctx, serveLoggerName)

	serverConfig, err := server.LoadServerConfig()
	if err != nil {
		return err
	}
	scheduleConfig, err := schedule.LoadConfig()
	if err != nil {
		return err
	}
	fetchConfig, err := fetch.LoadConfig()
	if err != nil {
		return err
	}
	notifyConfig, err := notify.LoadConfig()
	if err != nil {
		return err
	}

	fetcher, err := fetch.New(fetchConfig)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	senders, err := targets.OpenAll(ctx, o.outputs, o.stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := targets.CloseAll(senders); err != nil {
			log.Warn("error closing outputs", "error", err.Error())
		}
	}()

	notifiers, err := notify.New(ctx, notifyConfig)
	if err != nil {
		return err
	}
	defer notifiers.Close(context.WithoutCancel(ctx))

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
	for _, path := range o.paths {
		if err := svc.Load(ctx, path); err != nil {
			return err
		}
	}

	scheduler, err := schedule.New(ctx, scheduleConfig, svc)
	if err != nil {
		return err
	}
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	srv := newServer(ctx, serverConfig, svc)
	srv.StartAsync(ctx)
	log.Info("serving pipelines", "pipelines", len(o.paths), "port", serverConfig.HTTPPort)

	<-ctx.Done()
	log.Info("shutting down")

	if err := srv.Stop(); err != nil {
		log.Error("server shutdown failed", "error", err.Error())
	}
	scheduler.Stop()
	svc.Wait()
	return nil
}
