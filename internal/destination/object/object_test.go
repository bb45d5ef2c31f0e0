// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package object

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/destination/encode"
	"github.com/mia-platform/odp/internal/table"
)

type memoryStore struct {
	err     error
	objects map[string][]byte
	types   map[string]string
}

func (s *memoryStore) Put(_ context.Context, name, contentType string, data []byte) error {
	if s.err != nil {
		return s.err
	}
	s.objects[name] = data
	s.types[name] = contentType
	return nil
}

func (s *memoryStore) Location(name string) string {
	return "memory://" + name
}

func newMemoryStore(err error) *memoryStore {
	return &memoryStore{err: err, objects: map[string][]byte{}, types: map[string]string{}}
}

func testOutput() *destination.Output {
	data := table.New("key", "value")
	data.Append("US", int64(1))
	return &destination.Output{Pipeline: "mobility", RunID: "run", Table: data}
}

func TestObjectDestination(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		prefix       string
		format       encode.Format
		expectedName string
		expectedType string
		expectedBody string
	}{
		"csv without prefix": {
			format:       encode.FormatCSV,
			expectedName: "mobility.csv",
			expectedType: "text/csv",
			expectedBody: "key,value\nUS,1\n",
		},
		"json with nested prefix": {
			prefix:       "/exports/v3/",
			format:       encode.FormatJSON,
			expectedName: "exports/v3/mobility.json",
			expectedType: "application/json",
			expectedBody: `[{"key":"US","value":1}]` + "\n",
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := newMemoryStore(nil)
			sender := NewDestination(store, test.prefix, test.format)
			require.NoError(t, sender.Send(t.Context(), testOutput()))

			assert.Equal(t, test.expectedBody, string(store.objects[test.expectedName]))
			assert.Equal(t, test.expectedType, store.types[test.expectedName])
		})
	}
}

func TestObjectDestinationError(t *testing.T) {
	t.Parallel()

	putErr := errors.New("access denied")
	sender := NewDestination(newMemoryStore(putErr), "exports", encode.FormatCSV)

	err := sender.Send(t.Context(), testOutput())
	assert.ErrorIs(t, err, putErr)
	assert.ErrorContains(t, err, "memory://exports/mobility.csv")
}
