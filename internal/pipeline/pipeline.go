// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/mia-platform/odp/internal/config"
	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/logger"
	"github.com/mia-platform/odp/internal/source"
	"github.com/mia-platform/odp/internal/table"
)

const (
	loggerName = "odp:pipeline"

	defaultDataDir        = "."
	defaultMaxConcurrency = 4

	stageFetch   = "fetch"
	stageParse   = "parse"
	stageConform = "conform"
)

// Fetcher retrieves a fetch entry and returns the local path of its content.
type Fetcher interface {
	Fetch(ctx context.Context, spec config.FetchSpec) (string, error)
}

// Options configures a Pipeline.
type Options struct {
	// Name identifies the pipeline in reports and outputs.
	Name string
	// DataDir is the directory auxiliary paths are relative to, "." when empty.
	DataDir string
	// Fetcher retrieves the source resources.
	Fetcher Fetcher
	// Destinations receive the merged output of every run.
	Destinations []destination.Sender
	// MaxConcurrency bounds the sources processed in parallel.
	MaxConcurrency int
}

// RunOptions tunes a single run.
type RunOptions struct {
	// TestMode skips the sources whose test directives ask so.
	TestMode bool
	// Sources restricts the run to the entries with these handler names.
	Sources []string
}

// Pipeline is a configuration bound to its handlers and auxiliary tables.
type Pipeline struct {
	name           string
	config         *config.Config
	handlers       []source.DataSource
	auxiliary      map[string]*table.Table
	resolver       *keyResolver
	fetcher        Fetcher
	destinations   []destination.Sender
	maxConcurrency int
}

// New validates cfg, resolves every source handler and loads the auxiliary tables.
// Any configuration error is reported here, before anything is fetched.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Pipeline, error) {
	log := logger.Named(ctx, loggerName)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.HasField(config.KeyColumn) {
		return nil, fmt.Errorf("%w: schema must declare the %s column", config.ErrInvalidConfig, config.KeyColumn)
	}

	handlers := make([]source.DataSource, 0, len(cfg.Sources))
	errorsList := make([]error, 0)
	for _, spec := range cfg.Sources {
		handler, err := source.Lookup(spec.Name)
		if err != nil {
			errorsList = append(errorsList, err)
			continue
		}
		handlers = append(handlers, handler)
	}
	if len(errorsList) > 0 {
		return nil, errors.Join(errorsList...)
	}

	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = defaultDataDir
	}

	auxiliary := make(map[string]*table.Table, len(cfg.Auxiliary))
	for _, ref := range cfg.Auxiliary {
		path, err := ref.Resolve(dataDir)
		if err != nil {
			return nil, err
		}

		loaded, err := table.ReadCSVFile(path, table.CSVOptions{})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrAuxiliary, ref.Name, err)
		}
		log.Debug("auxiliary table loaded", "name", ref.Name, "path", path, "rows", loaded.Len())
		auxiliary[ref.Name] = loaded
	}

	maxConcurrency := opts.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}

	return &Pipeline{
		name:           opts.Name,
		config:         cfg,
		handlers:       handlers,
		auxiliary:      auxiliary,
		resolver:       newKeyResolver(auxiliary[source.MetadataTable]),
		fetcher:        opts.Fetcher,
		destinations:   opts.Destinations,
		maxConcurrency: maxConcurrency,
	}, nil
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string {
	return p.name
}

// Config returns the configuration the pipeline was built from.
func (p *Pipeline) Config() *config.Config {
	return p.config
}

// Run executes the sources concurrently, merges their tables by key and date and sends
// the result to the destinations. A failing source is recorded in the report and does
// not stop the others; Run fails only when every executed source failed, when a
// destination fails or when ctx is canceled.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		Pipeline:  p.name,
		TestMode:  opts.TestMode,
		StartedAt: time.Now(),
		Sources:   make([]SourceReport, len(p.config.Sources)),
	}

	log := logger.Named(ctx, loggerName).With("pipeline", p.name, "runId", report.RunID)
	ctx = logger.WithContext(ctx, log)

	for _, name := range opts.Sources {
		if !slices.Contains(p.config.SourceNames(), name) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotConfigured, name)
		}
	}

	results := make([]*table.Table, len(p.config.Sources))
	sourceErrors := make([]error, len(p.config.Sources))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(p.maxConcurrency)
	for idx, spec := range p.config.Sources {
		report.Sources[idx] = SourceReport{Name: spec.Name, Index: idx}
		if len(opts.Sources) > 0 && !slices.Contains(opts.Sources, spec.Name) {
			report.Sources[idx].Skipped = true
			continue
		}
		if opts.TestMode && spec.SkipInTests() {
			log.Info("source skipped in test mode", "source", spec.Name)
			report.Sources[idx].Skipped = true
			continue
		}

		group.Go(func() error {
			start := time.Now()
			result, err := p.runSource(groupCtx, idx, &report.Sources[idx])
			report.Sources[idx].Duration = time.Since(start)

			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}
			if err != nil {
				log.Error("source failed", "source", spec.Name, "index", idx, "error", err.Error())
				report.Sources[idx].Error = err.Error()
				sourceErrors[idx] = err
				return nil
			}

			log.Info("source completed", "source", spec.Name, "rows", result.Len(), "duration", report.Sources[idx].Duration.String())
			results[idx] = result
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	executed := 0
	for _, sourceReport := range report.Sources {
		if !sourceReport.Skipped {
			executed++
		}
	}

	if executed > 0 && report.Failures() == executed {
		report.FinishedAt = time.Now()
		err := fmt.Errorf("%w: %w", ErrNoData, errors.Join(sourceErrors...))
		report.Error = err.Error()
		return report, err
	}

	merged := table.Merge(p.config.IndexColumns(), results...)
	output := merged.Select(schemaColumns(p.config.Schema)...)
	report.OutputRows = output.Len()
	log.Debug("sources merged", "rows", output.Len(), "executed", executed)

	if executed > 0 {
		if err := p.deliver(ctx, report, output); err != nil {
			report.FinishedAt = time.Now()
			report.Error = err.Error()
			return report, err
		}
	}

	report.FinishedAt = time.Now()
	log.Info("pipeline run completed", "rows", report.OutputRows, "failures", report.Failures(), "duration", report.Duration().String())
	return report, nil
}

func (p *Pipeline) runSource(ctx context.Context, idx int, sourceReport *SourceReport) (*table.Table, error) {
	spec := p.config.Sources[idx]
	newError := func(stage string, err error) error {
		return &SourceError{Source: spec.Name, Index: idx, Stage: stage, Err: err}
	}

	paths := make([]string, 0, len(spec.Fetch))
	for _, fetch := range spec.Fetch {
		if p.fetcher == nil {
			return nil, newError(stageFetch, errors.New("no fetcher configured"))
		}

		path, err := p.fetcher.Fetch(ctx, fetch)
		if err != nil {
			return nil, newError(stageFetch, err)
		}
		paths = append(paths, path)
	}

	parsed, err := p.handlers[idx].Parse(ctx, source.ParseInput{
		Sources:   paths,
		Auxiliary: p.auxiliary,
		Options:   source.Options(spec.Parse),
	})
	if err != nil {
		return nil, newError(stageParse, err)
	}

	resolved, unmatched := p.resolver.Resolve(parsed)
	sourceReport.Unmatched = unmatched

	conformed, failures, err := table.Conform(resolved, p.config.Schema)
	if err != nil {
		return nil, newError(stageConform, err)
	}
	sourceReport.CastFailures = failures
	sourceReport.Rows = conformed.Len()

	return conformed, nil
}

func (p *Pipeline) deliver(ctx context.Context, report *Report, output *table.Table) error {
	errorsList := make([]error, 0)
	for _, sender := range p.destinations {
		err := sender.Send(ctx, &destination.Output{
			Pipeline:  p.name,
			RunID:     report.RunID,
			Schema:    p.config.Schema,
			Table:     output,
			CreatedAt: time.Now(),
		})
		if err != nil {
			errorsList = append(errorsList, err)
		}
	}

	if len(errorsList) > 0 {
		return fmt.Errorf("%w: %w", ErrDestination, errors.Join(errorsList...))
	}
	return nil
}

func schemaColumns(schema []config.SchemaField) []string {
	columns := make([]string, 0, len(schema))
	for _, field := range schema {
		columns = append(columns, field.Name)
	}
	return columns
}
