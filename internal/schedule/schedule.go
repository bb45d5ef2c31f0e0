// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package schedule

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"github.com/mia-platform/odp/internal/logger"
	"github.com/mia-platform/odp/internal/pipeline"
	"github.com/mia-platform/odp/internal/service"
)

const loggerName = "odp:schedule"

// Runner is the set of pipelines driven by the Scheduler.
type Runner interface {
	Paths() []string
	Load(ctx context.Context, path string) error
	Run(ctx context.Context, name string, opts pipeline.RunOptions) (*pipeline.Report, error)
}

// Scheduler owns the cron entries and the configuration watcher.
type Scheduler struct {
	config Config
	runner Runner
	log    logger.Logger

	cron    *cron.Cron
	watcher *fsnotify.Watcher

	lock   sync.Mutex
	timers map[string]*time.Timer
	done   chan struct{}
}

// New builds a Scheduler; nothing runs until Start is called.
func New(ctx context.Context, config Config, runner Runner) (*Scheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	log := logger.Named(ctx, loggerName)
	return &Scheduler{
		config: config,
		runner: runner,
		log:    log,
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{log: log}),
		)),
		timers: make(map[string]*time.Timer),
		done:   make(chan struct{}),
	}, nil
}

// Start registers one cron entry per pipeline and starts watching the
// configuration files. Runs and reloads are bound to ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	paths := s.runner.Paths()

	if s.config.Schedule != "" {
		for _, path := range paths {
			name := service.NameFromPath(path)
			if _, err := s.cron.AddFunc(s.config.Schedule, func() { s.trigger(ctx, name) }); err != nil {
				return err
			}
		}
		s.cron.Start()
		s.log.Info("pipelines scheduled", "schedule", s.config.Schedule, "pipelines", len(paths))
	}

	if !s.config.WatchConfig || len(paths) == 0 {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	watched := make(map[string]string, len(paths))
	dirs := make(map[string]struct{})
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			watcher.Close()
			return err
		}
		watched[absPath] = path

		// editors replace files on save, so the directory is watched instead of the file
		dir := filepath.Dir(absPath)
		if _, ok := dirs[dir]; ok {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return err
		}
		dirs[dir] = struct{}{}
	}

	s.watcher = watcher
	go s.watch(ctx, watched)
	s.log.Info("watching configuration files", "files", len(watched))
	return nil
}

// Stop removes the cron entries, closes the watcher and waits for the scheduled
// runs in progress.
func (s *Scheduler) Stop() {
	if s.watcher != nil {
		s.watcher.Close()
		<-s.done
	}

	s.lock.Lock()
	for path, timer := range s.timers {
		timer.Stop()
		delete(s.timers, path)
	}
	s.lock.Unlock()

	<-s.cron.Stop().Done()
}

// Entries returns the number of scheduled pipelines.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) trigger(ctx context.Context, name string) {
	s.log.Info("scheduled run starting", "pipeline", name)
	_, err := s.runner.Run(ctx, name, pipeline.RunOptions{})
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		s.log.Warn("scheduled run skipped, previous run still in progress", "pipeline", name)
	case err != nil:
		s.log.Error("scheduled run failed", "pipeline", name, "error", err.Error())
	}
}

func (s *Scheduler) watch(ctx context.Context, watched map[string]string) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			absPath, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if path, ok := watched[absPath]; ok {
				s.scheduleReload(ctx, path)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Error("configuration watcher error", "error", err.Error())
		}
	}
}

func (s *Scheduler) scheduleReload(ctx context.Context, path string) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if timer, ok := s.timers[path]; ok {
		timer.Stop()
	}
	s.timers[path] = time.AfterFunc(s.config.ReloadDebounce, func() {
		s.reload(ctx, path)
	})
}

func (s *Scheduler) reload(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	if err := s.runner.Load(ctx, path); err != nil {
		s.log.Error("configuration reload failed, keeping the previous configuration", "path", path, "error", err.Error())
		return
	}
	s.log.Info("configuration reloaded", "path", path)
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err.Error())...)
}
