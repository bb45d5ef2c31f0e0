// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/destination/encode"
	"github.com/mia-platform/odp/internal/table"
)

func TestFileDestination(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	sender, err := NewDestination(dir, encode.FormatCSV)
	require.NoError(t, err)

	data := table.New("date", "key", "mobility_parks")
	data.Append("2020-02-15", "US", int64(4))
	output := &destination.Output{Pipeline: "mobility", RunID: "run", Table: data}

	require.NoError(t, sender.Send(t.Context(), output))
	content, err := os.ReadFile(filepath.Join(dir, "mobility.csv"))
	require.NoError(t, err)
	assert.Equal(t, "date,key,mobility_parks\n2020-02-15,US,4\n", string(content))

	data.Append("2020-02-16", "US", int64(6))
	require.NoError(t, sender.Send(t.Context(), output))
	content, err = os.ReadFile(filepath.Join(dir, "mobility.csv"))
	require.NoError(t, err)
	assert.Equal(t, "date,key,mobility_parks\n2020-02-15,US,4\n2020-02-16,US,6\n", string(content))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStorePut(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(t.Context(), "nested/data.json", "application/json", []byte("[]")))
	content, err := os.ReadFile(store.Location("nested/data.json"))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(content))

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.ErrorIs(t, store.Put(ctx, "canceled.csv", "text/csv", nil), context.Canceled)
	assert.NoFileExists(t, store.Location("canceled.csv"))
}

func TestNewStoreOnFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "regular")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := NewStore(path)
	assert.Error(t, err)
}
