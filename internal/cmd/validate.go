// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/mia-platform/odp/internal/config"
	"github.com/mia-platform/odp/internal/pipeline"
	"github.com/mia-platform/odp/internal/service"
)

// validateOptions checks a configuration without fetching anything.
type validateOptions struct {
	path    string
	dataDir string
	stdout  io.Writer
}

func (o *validateOptions) execute(ctx context.Context) error {
	cfg, err := config.Load(o.path)
	if err != nil {
		return err
	}

	// binding resolves the handler names and loads the auxiliary tables
	if _, err := pipeline.New(ctx, cfg, pipeline.Options{
		Name:    service.NameFromPath(o.path),
		DataDir: o.dataDir,
	}); err != nil {
		return err
	}

	fmt.Fprintf(o.stdout, "%s: valid, %d schema fields, %d auxiliary tables, %d sources\n",
		o.path, len(cfg.Schema), len(cfg.Auxiliary), len(cfg.Sources))
	return nil
}
