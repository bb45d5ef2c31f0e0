// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package gcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/mia-platform/odp/internal/destination/encode"
)

func TestNewStore(t *testing.T) {
	t.Parallel()

	_, err := NewStore(t.Context(), "")
	assert.ErrorIs(t, err, ErrMissingBucket)

	store, err := NewStore(t.Context(), "open-data", option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	assert.Equal(t, "gs://open-data/v3/mobility.csv", store.Location("v3/mobility.csv"))
}

func TestNewDestination(t *testing.T) {
	t.Parallel()

	_, err := NewDestination(t.Context(), "", "v3", encode.FormatCSV)
	assert.ErrorIs(t, err, ErrMissingBucket)

	sender, err := NewDestination(t.Context(), "open-data", "v3", encode.FormatParquet, option.WithoutAuthentication())
	require.NoError(t, err)
	assert.NotNil(t, sender)
}
