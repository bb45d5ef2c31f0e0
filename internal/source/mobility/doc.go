// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package mobility implements the community mobility report handlers. Importing the
// package registers them in the source registry.
package mobility

import (
	"errors"

	"github.com/mia-platform/odp/internal/source"
)

var (
	// ErrMissingInput reports a handler invoked without fetched resources.
	ErrMissingInput = errors.New("no fetched resource to parse")
	// ErrMissingColumn reports an upstream file lacking a required column.
	ErrMissingColumn = errors.New("missing required column")
)

func init() {
	source.Register(GoogleMobilityName, func() source.DataSource { return new(GoogleDataSource) })
	source.Register(AppleMobilityName, func() source.DataSource { return new(AppleDataSource) })
}

// ctxCheckInterval is how many rows are processed between two context checks.
const ctxCheckInterval = 1 << 14
