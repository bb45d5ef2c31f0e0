// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"sync"
	"testing"

	"github.com/mia-platform/odp/internal/source"
	"github.com/mia-platform/odp/internal/table"
)

// FakeDataSource is a handler returning a canned table or error and recording its calls.
type FakeDataSource interface {
	source.DataSource
	// Calls returns the inputs received so far.
	Calls() []source.ParseInput
}

var _ FakeDataSource = &fakeDataSource{}

type fakeDataSource struct {
	tb     testing.TB
	result *table.Table
	err    error

	lock  sync.Mutex
	calls []source.ParseInput
}

// NewFakeDataSource returns a FakeDataSource producing a copy of result, or err when set.
func NewFakeDataSource(tb testing.TB, result *table.Table, err error) FakeDataSource {
	tb.Helper()

	return &fakeDataSource{
		tb:     tb,
		result: result,
		err:    err,
	}
}

// Parse records input and returns the canned outcome, honoring context cancellation.
func (f *fakeDataSource) Parse(ctx context.Context, input source.ParseInput) (*table.Table, error) {
	f.tb.Helper()

	f.lock.Lock()
	f.calls = append(f.calls, input)
	f.lock.Unlock()

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result == nil {
		return table.New(), nil
	}
	return f.result.Clone(), nil
}

func (f *fakeDataSource) Calls() []source.ParseInput {
	f.lock.Lock()
	defer f.lock.Unlock()

	calls := make([]source.ParseInput, len(f.calls))
	copy(calls, f.calls)
	return calls
}

// Factory wraps ds in a source.Factory always returning the same instance.
func Factory(ds source.DataSource) source.Factory {
	return func() source.DataSource {
		return ds
	}
}
