// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"time"
)

// SourceReport is the outcome of one source entry in a run.
type SourceReport struct {
	Name         string        `json:"name"`
	Index        int           `json:"index"`
	Skipped      bool          `json:"skipped,omitempty"`
	Rows         int           `json:"rows"`
	Unmatched    int           `json:"unmatched"`
	CastFailures int           `json:"castFailures"`
	Duration     time.Duration `json:"duration"`
	Error        string        `json:"error,omitempty"`
}

// Failed reports whether the source was executed and failed.
func (s SourceReport) Failed() bool {
	return s.Error != ""
}

// Report summarizes a pipeline run.
type Report struct {
	RunID      string         `json:"runId"`
	Pipeline   string         `json:"pipeline"`
	TestMode   bool           `json:"testMode,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Sources    []SourceReport `json:"sources"`
	OutputRows int            `json:"outputRows"`
	Error      string         `json:"error,omitempty"`
}

// Succeeded counts the sources that produced a table.
func (r *Report) Succeeded() int {
	count := 0
	for _, source := range r.Sources {
		if !source.Skipped && !source.Failed() {
			count++
		}
	}
	return count
}

// Failures counts the sources that were executed and failed.
func (r *Report) Failures() int {
	count := 0
	for _, source := range r.Sources {
		if source.Failed() {
			count++
		}
	}
	return count
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
