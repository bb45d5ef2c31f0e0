// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuxiliaryPath(t *testing.T) {
	t.Parallel()

	dataDir := "testdata"
	absoluteDataDir, err := filepath.Abs(dataDir)
	require.NoError(t, err)

	config := &Config{
		Schema: []SchemaField{{Name: "key", Type: TypeString}},
		Auxiliary: []AuxiliaryRef{
			{Name: "metadata", Path: "./data/metadata.csv"},
			{Name: "escape", Path: "../config.go"},
			{Name: "absolute", Path: "/etc/hosts"},
			{Name: "missing", Path: "./data/missing.csv"},
			{Name: "directory", Path: "./data"},
		},
	}

	testCases := map[string]struct {
		name          string
		expectedPath  string
		expectedError error
		errorContains string
	}{
		"file inside the data directory": {
			name:         "metadata",
			expectedPath: filepath.Join(absoluteDataDir, "data", "metadata.csv"),
		},
		"path escaping the data directory": {
			name:          "escape",
			expectedError: ErrAuxiliaryPath,
			errorContains: "escapes the data directory",
		},
		"absolute path": {
			name:          "absolute",
			expectedError: ErrAuxiliaryPath,
			errorContains: "must be relative",
		},
		"missing file": {
			name:          "missing",
			expectedError: ErrAuxiliaryPath,
		},
		"directory instead of file": {
			name:          "directory",
			expectedError: ErrAuxiliaryPath,
			errorContains: "is a directory",
		},
		"undeclared name": {
			name:          "knowledge_graph",
			expectedError: ErrUnknownAuxiliary,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			path, err := config.AuxiliaryPath(tc.name, dataDir)
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
				assert.ErrorContains(t, err, tc.errorContains)
				assert.Empty(t, path)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expectedPath, path)
		})
	}
}
