// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appleMobilitySource = "pipelines.mobility.apple_mobility.AppleMobilityDataSource"

func loadTestDocument(t *testing.T, name string) (*Document, []byte) {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)

	document, err := ParseDocument(data)
	require.NoError(t, err)
	return document, data
}

func TestDocumentDisabledEntries(t *testing.T) {
	t.Parallel()

	document, data := loadTestDocument(t, "mobility.yaml")
	assert.Equal(t, data, document.Bytes())

	assert.Equal(t, []SchemaField{
		{Name: "mobility_driving", Type: TypeInt},
		{Name: "mobility_transit", Type: TypeInt},
		{Name: "mobility_walking", Type: TypeInt},
	}, document.DisabledSchemaFields())

	disabled := document.DisabledSources()
	require.Len(t, disabled, 1)
	assert.Equal(t, SourceSpec{
		Name:  appleMobilitySource,
		Fetch: []FetchSpec{{URL: "https://covid19-static.cdn-apple.com/covid19-mobility-data/current/v3/en-us/applemobilitytrends.csv"}},
		Test:  &TestDirectives{Skip: true},
	}, disabled[0].Source)
	assert.Equal(t, 25, disabled[0].Line)

	config, err := document.Config()
	require.NoError(t, err)
	assert.NotContains(t, config.SourceNames(), appleMobilitySource)
}

func TestDocumentDisabledEntriesWithProse(t *testing.T) {
	t.Parallel()

	document, _ := loadTestDocument(t, "multiple.yaml")

	assert.Equal(t, []SchemaField{{Name: "new_confirmed", Type: TypeInt}}, document.DisabledSchemaFields())

	names := []string{}
	for _, entry := range document.DisabledSources() {
		names = append(names, entry.Source.Name)
	}
	assert.Equal(t, []string{"second.Source", "third.Source"}, names)
}

func TestDocumentToggle(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		file          string
		first         func(*Document) error
		second        func(*Document) error
		checkToggled  func(*testing.T, *Document)
		expectedError error
	}{
		"enable and disable a source": {
			file:   "mobility.yaml",
			first:  func(d *Document) error { return d.EnableSource(appleMobilitySource) },
			second: func(d *Document) error { return d.DisableSource(appleMobilitySource) },
			checkToggled: func(t *testing.T, d *Document) {
				t.Helper()
				config, err := d.Config()
				require.NoError(t, err)
				assert.Equal(t, []string{appleMobilitySource, googleMobilitySource}, config.SourceNames())
				assert.Empty(t, d.DisabledSources())
			},
		},
		"disable and enable a source": {
			file:   "mobility.yaml",
			first:  func(d *Document) error { return d.DisableSource(googleMobilitySource) },
			second: func(d *Document) error { return d.EnableSource(googleMobilitySource) },
			checkToggled: func(t *testing.T, d *Document) {
				t.Helper()
				config, err := d.Config()
				require.NoError(t, err)
				assert.Empty(t, config.Sources)
				assert.Len(t, d.DisabledSources(), 2)
				assert.Contains(t, string(d.Bytes()), "  # - name: "+googleMobilitySource+"\n  #   fetch:\n")
			},
		},
		"disable and enable a schema field": {
			file:   "mobility.yaml",
			first:  func(d *Document) error { return d.DisableSchemaField("mobility_parks") },
			second: func(d *Document) error { return d.EnableSchemaField("mobility_parks") },
			checkToggled: func(t *testing.T, d *Document) {
				t.Helper()
				config, err := d.Config()
				require.NoError(t, err)
				assert.False(t, config.HasField("mobility_parks"))
				assert.Contains(t, string(d.Bytes()), "  # mobility_parks: int\n")
			},
		},
		"enable and disable a schema field": {
			file:   "mobility.yaml",
			first:  func(d *Document) error { return d.EnableSchemaField("mobility_transit") },
			second: func(d *Document) error { return d.DisableSchemaField("mobility_transit") },
			checkToggled: func(t *testing.T, d *Document) {
				t.Helper()
				config, err := d.Config()
				require.NoError(t, err)
				assert.True(t, config.HasField("mobility_transit"))
				assert.Len(t, d.DisabledSchemaFields(), 2)
			},
		},
		"disable every entry of a repeated source": {
			file:   "multiple.yaml",
			first:  func(d *Document) error { return d.DisableSource("first.Source") },
			second: func(d *Document) error { return d.EnableSource("first.Source") },
			checkToggled: func(t *testing.T, d *Document) {
				t.Helper()
				config, err := d.Config()
				require.NoError(t, err)
				assert.Equal(t, []string{"fourth.Source"}, config.SourceNames())
				assert.Contains(t, string(d.Bytes()), "  # end of disabled entries\n  - name: fourth.Source")
			},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			document, data := loadTestDocument(t, tc.file)

			require.NoError(t, tc.first(document))
			assert.NotEqual(t, data, document.Bytes())
			tc.checkToggled(t, document)

			require.NoError(t, tc.second(document))
			assert.Equal(t, string(data), string(document.Bytes()))
		})
	}
}

func TestDocumentToggleErrors(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		edit          func(*Document) error
		expectedError error
	}{
		"enable unknown source": {
			edit:          func(d *Document) error { return d.EnableSource("missing.Source") },
			expectedError: ErrEntryNotFound,
		},
		"disable unknown source": {
			edit:          func(d *Document) error { return d.DisableSource("missing.Source") },
			expectedError: ErrEntryNotFound,
		},
		"enable unknown schema field": {
			edit:          func(d *Document) error { return d.EnableSchemaField("reviewed by") },
			expectedError: ErrEntryNotFound,
		},
		"disable unknown schema field": {
			edit:          func(d *Document) error { return d.DisableSchemaField("deaths") },
			expectedError: ErrEntryNotFound,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			document, data := loadTestDocument(t, "multiple.yaml")
			err := tc.edit(document)
			assert.ErrorIs(t, err, tc.expectedError)
			assert.Equal(t, data, document.Bytes())
		})
	}
}

func TestDocumentNoopToggles(t *testing.T) {
	t.Parallel()

	document, data := loadTestDocument(t, "mobility.yaml")

	require.NoError(t, document.EnableSource(googleMobilitySource))
	require.NoError(t, document.DisableSource(appleMobilitySource))
	require.NoError(t, document.EnableSchemaField("mobility_parks"))
	require.NoError(t, document.DisableSchemaField("mobility_walking"))
	assert.Equal(t, data, document.Bytes())
}

func TestDocumentEditRollback(t *testing.T) {
	t.Parallel()

	data := []byte("schema:\n  key: str\n  # key: int\n")
	document, err := ParseDocument(data)
	require.NoError(t, err)

	err = document.EnableSchemaField("key")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, data, document.Bytes())

	err = document.DisableSchemaField("key")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, data, document.Bytes())
}

func TestDocumentFlowStyleSources(t *testing.T) {
	t.Parallel()

	document, err := ParseDocument([]byte("schema:\n  key: str\nsources: [{name: a.B}]\n"))
	require.NoError(t, err)

	err = document.DisableSource("a.B")
	assert.ErrorIs(t, err, ErrUnsupportedLayout)
}

func TestDocumentWriteFile(t *testing.T) {
	t.Parallel()

	document, data := loadTestDocument(t, "mobility.yaml")
	require.NoError(t, document.EnableSchemaField("mobility_walking"))

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, document.WriteFile(path))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strings.Replace(string(data), "  # mobility_walking: int", "  mobility_walking: int", 1), string(written))

	loaded, err := LoadDocument(path)
	require.NoError(t, err)
	assert.Len(t, loaded.DisabledSchemaFields(), 2)
}
