// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package destination

import (
	"context"
	"time"

	"github.com/mia-platform/odp/internal/config"
	"github.com/mia-platform/odp/internal/table"
)

// Sender delivers the output table of a pipeline run to a destination.
type Sender interface {
	Send(ctx context.Context, output *Output) error
}

// Output is the result of a pipeline run.
type Output struct {
	// Pipeline is the name of the pipeline that produced the table.
	Pipeline string
	// RunID identifies the run.
	RunID string
	// Schema is the ordered list of the table columns and their types.
	Schema []config.SchemaField
	// Table holds the merged rows, with columns in schema order.
	Table *table.Table
	// CreatedAt is the time the run finished merging its sources.
	CreatedAt time.Time
}

// ObjectName returns the base name used by file like destinations, "<pipeline>.<extension>".
func (o *Output) ObjectName(extension string) string {
	return o.Pipeline + "." + extension
}
