// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData reports a run where every executed source failed.
	ErrNoData = errors.New("no source produced data")
	// ErrDestination reports a failure delivering the output.
	ErrDestination = errors.New("destination failed")
	// ErrSourceNotConfigured reports a run restricted to a source missing from the configuration.
	ErrSourceNotConfigured = errors.New("source not configured")
	// ErrAuxiliary reports an auxiliary table that cannot be loaded.
	ErrAuxiliary = errors.New("cannot load auxiliary table")
)

// SourceError is a runtime failure of a single source entry.
type SourceError struct {
	// Source is the handler name of the failing entry.
	Source string
	// Index is the position of the entry in the sources list.
	Index int
	// Stage is the step that failed: fetch, parse or conform.
	Stage string
	Err   error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %d (%s): %s: %s", e.Index, e.Source, e.Stage, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
