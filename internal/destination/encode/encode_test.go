// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package encode

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/odp/internal/config"
	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/table"
)

func testOutput() *destination.Output {
	data := table.New("date", "key", "value", "ratio")
	data.Append("2020-02-15", "US", int64(10), 0.5)
	data.Append("2020-02-16", "US_CA", nil, 1.25)

	return &destination.Output{
		Pipeline: "mobility",
		RunID:    "run",
		Schema: []config.SchemaField{
			{Name: "date", Type: config.TypeString},
			{Name: "key", Type: config.TypeString},
			{Name: "value", Type: config.TypeInt},
			{Name: "ratio", Type: config.TypeFloat},
		},
		Table: data,
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		name          string
		expected      Format
		expectedError error
	}{
		"empty is csv":   {name: "", expected: FormatCSV},
		"json":           {name: "json", expected: FormatJSON},
		"case folded":    {name: " Parquet ", expected: FormatParquet},
		"unknown format": {name: "xlsx", expectedError: ErrUnknownFormat},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			format, err := ParseFormat(test.name)
			if test.expectedError != nil {
				assert.ErrorIs(t, err, test.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, format)
			assert.Equal(t, string(test.expected), format.Extension())
			assert.NotEmpty(t, format.ContentType())
		})
	}
}

func TestWrite(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		format   Format
		expected string
	}{
		"csv": {
			format:   FormatCSV,
			expected: "date,key,value,ratio\n2020-02-15,US,10,0.5\n2020-02-16,US_CA,,1.25\n",
		},
		"json": {
			format:   FormatJSON,
			expected: `[{"date":"2020-02-15","key":"US","ratio":0.5,"value":10},{"date":"2020-02-16","key":"US_CA","ratio":1.25,"value":null}]` + "\n",
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			buffer := new(bytes.Buffer)
			require.NoError(t, Write(buffer, test.format, testOutput()))
			assert.Equal(t, test.expected, buffer.String())
		})
	}
}

func TestWriteParquet(t *testing.T) {
	t.Parallel()

	buffer := new(bytes.Buffer)
	require.NoError(t, Write(buffer, FormatParquet, testOutput()))

	content := buffer.Bytes()
	require.Greater(t, len(content), 8)
	assert.Equal(t, []byte("PAR1"), content[:4])
	assert.Equal(t, []byte("PAR1"), content[len(content)-4:])
}

func TestWriteErrors(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, Write(new(bytes.Buffer), Format("xlsx"), testOutput()), ErrUnknownFormat)
	assert.Error(t, Write(new(bytes.Buffer), FormatCSV, &destination.Output{}))
}
