// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package table

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/odp/internal/config"
)

func TestCast(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		value         any
		typ           string
		expected      any
		expectedError error
	}{
		"nil stays nil":              {value: nil, typ: config.TypeInt, expected: nil},
		"string to str":              {value: "US", typ: config.TypeString, expected: "US"},
		"int to str":                 {value: int64(3), typ: config.TypeString, expected: "3"},
		"integral float to str":      {value: 12.0, typ: config.TypeString, expected: "12"},
		"nan to str":                 {value: math.NaN(), typ: config.TypeString, expected: nil},
		"string to int":              {value: "-12", typ: config.TypeInt, expected: int64(-12)},
		"integral float text to int": {value: "12.0", typ: config.TypeInt, expected: int64(12)},
		"empty text to int":          {value: " ", typ: config.TypeInt, expected: nil},
		"nan text to int":            {value: "NaN", typ: config.TypeInt, expected: nil},
		"float to int":               {value: 4.0, typ: config.TypeInt, expected: int64(4)},
		"bool to int":                {value: true, typ: config.TypeInt, expected: int64(1)},
		"fraction to int":            {value: "1.5", typ: config.TypeInt, expectedError: ErrCast},
		"text to int":                {value: "many", typ: config.TypeInt, expectedError: ErrCast},
		"int64 max text to int":      {value: "9223372036854775807", typ: config.TypeInt, expected: int64(math.MaxInt64)},
		"int64 min text to int":      {value: "-9223372036854775808", typ: config.TypeInt, expected: int64(math.MinInt64)},
		"overflowing text to int":    {value: "9223372036854775808", typ: config.TypeInt, expectedError: ErrCast},
		"exponent text to int":       {value: "1e19", typ: config.TypeInt, expectedError: ErrCast},
		"negative exponent to int":   {value: "-1e30", typ: config.TypeInt, expectedError: ErrCast},
		"large float to int":         {value: 1e19, typ: config.TypeInt, expectedError: ErrCast},
		"min int float to int":       {value: -9223372036854775808.0, typ: config.TypeInt, expected: int64(math.MinInt64)},
		"text to float":              {value: "0.25", typ: config.TypeFloat, expected: 0.25},
		"int to float":               {value: int64(2), typ: config.TypeFloat, expected: 2.0},
		"nan to float":               {value: "nan", typ: config.TypeFloat, expected: nil},
		"invalid text to float":      {value: "n/a", typ: config.TypeFloat, expectedError: ErrCast},
		"unknown type":               {value: "x", typ: "date", expectedError: ErrUnknownType},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			value, err := Cast(tc.value, tc.typ)
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expected, value)
		})
	}
}

func TestConform(t *testing.T) {
	t.Parallel()

	data := New("value", "key", "extra", "date")
	data.Append("10", "US", "dropped", "2020-02-15")
	data.Append("n/a", "IT", nil, "2020-02-15")
	data.Append("1.5", "FR", nil, nil)
	data.Append("1e19", "DE", nil, nil)

	schema := []config.SchemaField{
		{Name: "date", Type: config.TypeString},
		{Name: "key", Type: config.TypeString},
		{Name: "value", Type: config.TypeInt},
		{Name: "missing", Type: config.TypeFloat},
	}

	conformed, failures, err := Conform(data, schema)
	require.NoError(t, err)
	assert.Equal(t, 3, failures)
	assert.Equal(t, &Table{
		Columns: []string{"date", "key", "value", "missing"},
		Rows: [][]any{
			{"2020-02-15", "US", int64(10), nil},
			{"2020-02-15", "IT", nil, nil},
			{nil, "FR", nil, nil},
			{nil, "DE", nil, nil},
		},
	}, conformed)

	_, _, err = Conform(data, []config.SchemaField{{Name: "key", Type: "timestamp"}})
	assert.ErrorIs(t, err, ErrUnknownType)
}
