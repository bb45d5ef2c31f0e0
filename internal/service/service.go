// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mia-platform/odp/internal/config"
	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/logger"
	"github.com/mia-platform/odp/internal/pipeline"
)

const (
	loggerName = "odp:service"

	configFileName   = "config.yaml"
	defaultRunsLimit = 50
)

var (
	// ErrPipelineNotFound reports a request for a pipeline that is not loaded.
	ErrPipelineNotFound = errors.New("pipeline not found")
	// ErrRunInProgress reports a trigger while the same pipeline is already running.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrDuplicatePipeline reports two configuration files resolving to the same pipeline name.
	ErrDuplicatePipeline = errors.New("duplicate pipeline")
)

// Recorder persists run reports.
type Recorder interface {
	Record(ctx context.Context, report *pipeline.Report) error
	List(ctx context.Context, pipelineName string, limit int) ([]*pipeline.Report, error)
}

// Notifier publishes run reports.
type Notifier interface {
	Notify(ctx context.Context, report *pipeline.Report) error
}

// Options configures a Service.
type Options struct {
	DataDir        string
	Fetcher        pipeline.Fetcher
	Destinations   []destination.Sender
	MaxConcurrency int
	// History is optional; without it only the last report of each pipeline is kept.
	History Recorder
	// Notifier is optional.
	Notifier Notifier
}

// Status describes a loaded pipeline.
type Status struct {
	Name     string           `json:"name"`
	Path     string           `json:"path"`
	Sources  []string         `json:"sources"`
	Running  bool             `json:"running"`
	LoadedAt time.Time        `json:"loadedAt"`
	LastRun  *pipeline.Report `json:"lastRun,omitempty"`
}

type entry struct {
	name string
	path string

	running  sync.Mutex
	busy     atomic.Bool
	current  atomic.Pointer[pipeline.Pipeline]
	loadedAt atomic.Pointer[time.Time]
	lastRun  atomic.Pointer[pipeline.Report]
}

// Service owns the loaded pipelines and coordinates their runs.
type Service struct {
	opts Options

	lock    sync.RWMutex
	entries map[string]*entry
	order   []string

	wg sync.WaitGroup
}

// New returns an empty Service.
func New(opts Options) *Service {
	return &Service{
		opts:    opts,
		entries: make(map[string]*entry),
	}
}

// NameFromPath derives the pipeline name from its configuration file: the parent
// directory for files named config.yaml, the file name without extension otherwise.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	if base == configFileName {
		return filepath.Base(filepath.Dir(path))
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load reads, validates and binds the configuration at path. A pipeline that is
// already loaded from the same file is replaced only when the new configuration
// is valid, otherwise the previous one keeps serving.
func (s *Service) Load(ctx context.Context, path string) error {
	name := NameFromPath(path)
	log := logger.Named(ctx, loggerName)

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	bound, err := pipeline.New(ctx, cfg, pipeline.Options{
		Name:           name,
		DataDir:        s.opts.DataDir,
		Fetcher:        s.opts.Fetcher,
		Destinations:   s.opts.Destinations,
		MaxConcurrency: s.opts.MaxConcurrency,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	current, ok := s.entries[name]
	if ok && current.path != path {
		return fmt.Errorf("%w: %s is defined by %q and %q", ErrDuplicatePipeline, name, current.path, path)
	}
	if !ok {
		current = &entry{name: name, path: path}
		s.entries[name] = current
		s.order = append(s.order, name)
	}

	now := time.Now()
	current.current.Store(bound)
	current.loadedAt.Store(&now)
	log.Info("pipeline loaded", "pipeline", name, "path", path, "sources", len(cfg.Sources))
	return nil
}

// Path returns the configuration file of the named pipeline.
func (s *Service) Path(name string) (string, bool) {
	current, err := s.lookup(name)
	if err != nil {
		return "", false
	}
	return current.path, true
}

// Paths returns the configuration files of every loaded pipeline in load order.
func (s *Service) Paths() []string {
	s.lock.RLock()
	defer s.lock.RUnlock()

	paths := make([]string, 0, len(s.order))
	for _, name := range s.order {
		paths = append(paths, s.entries[name].path)
	}
	return paths
}

// Pipelines returns the status of every loaded pipeline in load order.
func (s *Service) Pipelines() []Status {
	s.lock.RLock()
	defer s.lock.RUnlock()

	statuses := make([]Status, 0, len(s.order))
	for _, name := range s.order {
		current := s.entries[name]
		bound := current.current.Load()
		statuses = append(statuses, Status{
			Name:     name,
			Path:     current.path,
			Sources:  bound.Config().SourceNames(),
			Running:  current.busy.Load(),
			LoadedAt: *current.loadedAt.Load(),
			LastRun:  current.lastRun.Load(),
		})
	}
	return statuses
}

// Run executes the named pipeline and waits for its report. It fails with
// ErrRunInProgress when a run of the same pipeline has not finished yet.
func (s *Service) Run(ctx context.Context, name string, opts pipeline.RunOptions) (*pipeline.Report, error) {
	current, err := s.acquire(name)
	if err != nil {
		return nil, err
	}
	defer current.release()

	return s.execute(ctx, current, opts)
}

// Start executes the named pipeline in background. The run lock is acquired
// before returning so that a concurrent trigger is rejected immediately.
func (s *Service) Start(ctx context.Context, name string, opts pipeline.RunOptions) error {
	current, err := s.acquire(name)
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer current.release()
		_, _ = s.execute(ctx, current, opts)
	}()
	return nil
}

// Wait blocks until every run started with Start has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Runs returns the most recent reports, newest first. pipelineName may be empty
// to list every pipeline.
func (s *Service) Runs(ctx context.Context, pipelineName string, limit int) ([]*pipeline.Report, error) {
	if pipelineName != "" {
		if _, err := s.lookup(pipelineName); err != nil {
			return nil, err
		}
	}
	if limit <= 0 {
		limit = defaultRunsLimit
	}

	if s.opts.History != nil {
		return s.opts.History.List(ctx, pipelineName, limit)
	}

	s.lock.RLock()
	defer s.lock.RUnlock()

	reports := make([]*pipeline.Report, 0, len(s.order))
	for _, name := range s.order {
		if pipelineName != "" && name != pipelineName {
			continue
		}
		if report := s.entries[name].lastRun.Load(); report != nil {
			reports = append(reports, report)
		}
	}
	slices.SortFunc(reports, func(a, b *pipeline.Report) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if len(reports) > limit {
		reports = reports[:limit]
	}
	return reports, nil
}

func (s *Service) lookup(name string) (*entry, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	current, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPipelineNotFound, name)
	}
	return current, nil
}

func (s *Service) acquire(name string) (*entry, error) {
	current, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	if !current.running.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, name)
	}
	current.busy.Store(true)
	return current, nil
}

func (e *entry) release() {
	e.busy.Store(false)
	e.running.Unlock()
}

func (s *Service) execute(ctx context.Context, current *entry, opts pipeline.RunOptions) (*pipeline.Report, error) {
	log := logger.Named(ctx, loggerName)

	report, err := current.current.Load().Run(ctx, opts)
	if report == nil {
		log.Error("pipeline run aborted", "pipeline", current.name, "error", err)
		return nil, err
	}
	current.lastRun.Store(report)

	// the report is persisted even when ctx is done
	persistCtx := context.WithoutCancel(ctx)
	if s.opts.History != nil {
		if recordErr := s.opts.History.Record(persistCtx, report); recordErr != nil {
			log.Error("cannot record run", "pipeline", current.name, "runId", report.RunID, "error", recordErr)
		}
	}
	if s.opts.Notifier != nil {
		if notifyErr := s.opts.Notifier.Notify(persistCtx, report); notifyErr != nil {
			log.Warn("cannot notify run", "pipeline", current.name, "runId", report.RunID, "error", notifyErr)
		}
	}

	return report, err
}
