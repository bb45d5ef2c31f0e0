// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const googleMobilitySource = "pipelines.mobility.google_mobility.GoogleMobilityDataSource"

func TestLoad(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		path          string
		expected      *Config
		expectedError error
		errorContains string
	}{
		"mobility configuration": {
			path: filepath.Join("testdata", "mobility.yaml"),
			expected: &Config{
				Schema: []SchemaField{
					{Name: "date", Type: TypeString},
					{Name: "key", Type: TypeString},
					{Name: "mobility_retail_and_recreation", Type: TypeInt},
					{Name: "mobility_grocery_and_pharmacy", Type: TypeInt},
					{Name: "mobility_parks", Type: TypeInt},
					{Name: "mobility_transit_stations", Type: TypeInt},
					{Name: "mobility_workplaces", Type: TypeInt},
					{Name: "mobility_residential", Type: TypeInt},
				},
				Auxiliary: []AuxiliaryRef{
					{Name: "metadata", Path: "./data/metadata.csv"},
					{Name: "country_codes", Path: "./data/country_codes.csv"},
				},
				Sources: []SourceSpec{
					{
						Name:  googleMobilitySource,
						Fetch: []FetchSpec{{URL: "https://www.gstatic.com/covid19/mobility/Global_Mobility_Report.csv"}},
						Parse: map[string]any{"low_memory": false},
						Test:  &TestDirectives{Skip: true},
					},
				},
			},
		},
		"duplicate schema field": {
			path:          filepath.Join("testdata", "duplicate-field.yaml"),
			expectedError: ErrInvalidConfig,
			errorContains: "duplicate schema field 'date'",
		},
		"unknown schema type": {
			path:          filepath.Join("testdata", "unknown-type.yaml"),
			expectedError: ErrInvalidConfig,
			errorContains: "unknown type 'timestamp' for schema field 'date'",
		},
		"test skip is not a boolean": {
			path:          filepath.Join("testdata", "invalid-skip.yaml"),
			expectedError: ErrParsing,
			errorContains: `test.skip must be a boolean, found "sometimes"`,
		},
		"test skip is a quoted yes": {
			path:          filepath.Join("testdata", "quoted-skip.yaml"),
			expectedError: ErrParsing,
			errorContains: `test.skip must be a boolean, found "yes"`,
		},
		"test skip is null": {
			path:          filepath.Join("testdata", "null-skip.yaml"),
			expectedError: ErrParsing,
			errorContains: "test.skip must be a boolean",
		},
		"unknown top level key": {
			path:          filepath.Join("testdata", "unknown-key.yaml"),
			expectedError: ErrParsing,
			errorContains: "outputs",
		},
		"empty source name and url": {
			path:          filepath.Join("testdata", "empty-source.yaml"),
			expectedError: ErrInvalidConfig,
			errorContains: "source 0 fetch 0 has an empty url",
		},
		"missing file": {
			path:          filepath.Join("testdata", "missing.yaml"),
			errorContains: "no such file or directory",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			config, err := Load(tc.path)
			if tc.expectedError != nil || tc.errorContains != "" {
				require.Error(t, err)
				if tc.expectedError != nil {
					assert.ErrorIs(t, err, tc.expectedError)
				}
				assert.ErrorContains(t, err, tc.errorContains)
				assert.Nil(t, config)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, config)
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		data          string
		expected      *Config
		expectedError error
	}{
		"empty document": {
			data:          "",
			expectedError: ErrParsing,
		},
		"only comments": {
			data:          "# nothing here\n",
			expectedError: ErrParsing,
		},
		"schema without fields": {
			data:          "schema: {}\n",
			expectedError: ErrInvalidConfig,
		},
		"schema is a list": {
			data:          "schema:\n  - key\n",
			expectedError: ErrParsing,
		},
		"unknown source key": {
			data:          "schema:\n  key: str\nsources:\n  - name: a.B\n    retries: 3\n",
			expectedError: ErrParsing,
		},
		"unknown test key": {
			data:          "schema:\n  key: str\nsources:\n  - name: a.B\n    test:\n      retries: 3\n",
			expectedError: ErrParsing,
		},
		"test skip as yaml 1.1 word": {
			data:          "schema:\n  key: str\nsources:\n  - name: a.B\n    test:\n      skip: yes\n",
			expectedError: ErrParsing,
		},
		"test is not a mapping": {
			data:          "schema:\n  key: str\nsources:\n  - name: a.B\n    test: true\n",
			expectedError: ErrParsing,
		},
		"auxiliary with empty path": {
			data:          "schema:\n  key: str\nauxiliary:\n  metadata: \"\"\n",
			expectedError: ErrInvalidConfig,
		},
		"minimal document": {
			data: "schema:\n  key: str\n",
			expected: &Config{
				Schema:    []SchemaField{{Name: "key", Type: TypeString}},
				Auxiliary: nil,
			},
		},
		"fetch options and test without skip": {
			data: "schema:\n  key: str\nsources:\n  - name: a.B\n    fetch:\n      - url: https://example.com/data\n        opts:\n          ext: csv\n    test: {}\n",
			expected: &Config{
				Schema: []SchemaField{{Name: "key", Type: TypeString}},
				Sources: []SourceSpec{
					{
						Name:  "a.B",
						Fetch: []FetchSpec{{URL: "https://example.com/data", Opts: map[string]any{"ext": "csv"}}},
						Test:  &TestDirectives{},
					},
				},
			},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			config, err := Parse([]byte(tc.data))
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
				assert.Nil(t, config)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, config)
		})
	}
}

func TestConfigHelpers(t *testing.T) {
	t.Parallel()

	config, err := Load(filepath.Join("testdata", "mobility.yaml"))
	require.NoError(t, err)

	assert.True(t, config.HasField(DateColumn))
	assert.False(t, config.HasField("mobility_driving"))
	assert.Equal(t, []string{KeyColumn, DateColumn}, config.IndexColumns())
	assert.Equal(t, []string{googleMobilitySource}, config.SourceNames())
	assert.True(t, config.Sources[0].SkipInTests())

	withoutDate := &Config{Schema: []SchemaField{{Name: KeyColumn, Type: TypeString}}}
	assert.Equal(t, []string{KeyColumn}, withoutDate.IndexColumns())
	assert.False(t, SourceSpec{Name: "a.B"}.SkipInTests())
}

func TestValidateReportsEveryViolation(t *testing.T) {
	t.Parallel()

	config := &Config{
		Schema: []SchemaField{
			{Name: "key", Type: TypeString},
			{Name: "key", Type: "timestamp"},
		},
		Sources: []SourceSpec{{Name: " ", Fetch: []FetchSpec{{URL: ""}}}},
	}

	err := config.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)

	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)

	violations := joined.Unwrap()
	require.Len(t, violations, 4)
	for _, violation := range violations {
		assert.ErrorIs(t, violation, ErrInvalidConfig)
	}
	assert.ErrorContains(t, violations[0], "duplicate schema field 'key'")
	assert.ErrorContains(t, violations[1], "unknown type 'timestamp' for schema field 'key'")
	assert.ErrorContains(t, violations[2], "source 0 has an empty name")
	assert.ErrorContains(t, violations[3], "source 0 fetch 0 has an empty url")
}
