// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"sync"
	"testing"

	"github.com/mia-platform/odp/internal/destination"
)

var _ destination.Sender = &FakeDestination{}

// FakeDestination records every output it receives and can be told to fail.
type FakeDestination struct {
	tb  testing.TB
	err error

	lock       sync.Mutex
	SentOutput []*destination.Output
}

func NewFakeDestination(tb testing.TB) *FakeDestination {
	tb.Helper()
	return &FakeDestination{tb: tb}
}

// NewFailingDestination returns a FakeDestination whose Send always returns err.
func NewFailingDestination(tb testing.TB, err error) *FakeDestination {
	tb.Helper()
	return &FakeDestination{tb: tb, err: err}
}

func (f *FakeDestination) Send(_ context.Context, output *destination.Output) error {
	f.tb.Helper()
	if f.err != nil {
		return f.err
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	f.SentOutput = append(f.SentOutput, output)
	return nil
}

// Outputs returns a copy of the outputs received so far.
func (f *FakeDestination) Outputs() []*destination.Output {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]*destination.Output(nil), f.SentOutput...)
}
