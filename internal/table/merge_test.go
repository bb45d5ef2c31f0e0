// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMerge(t *testing.T) {
	t.Parallel()

	first := New("key", "date", "a", "b")
	first.Append("US", "2020-02-16", int64(1), int64(1))
	first.Append("US", "2020-02-15", int64(2), nil)
	first.Append(nil, "2020-02-15", int64(9), nil)

	second := New("date", "key", "b", "c")
	second.Append("2020-02-16", "US", int64(5), "x")
	second.Append("2020-02-15", "US", nil, "y")
	second.Append("2020-02-15", "IT", int64(7), nil)

	testCases := map[string]struct {
		keys     []string
		tables   []*Table
		expected *Table
	}{
		"later tables win on non nil values": {
			keys:   []string{"key", "date"},
			tables: []*Table{first, second},
			expected: &Table{
				Columns: []string{"key", "date", "a", "b", "c"},
				Rows: [][]any{
					{"IT", "2020-02-15", nil, int64(7), nil},
					{"US", "2020-02-15", int64(2), nil, "y"},
					{"US", "2020-02-16", int64(1), int64(5), "x"},
				},
			},
		},
		"order of tables decides the winner": {
			keys:   []string{"key", "date"},
			tables: []*Table{second, first},
			expected: &Table{
				Columns: []string{"key", "date", "b", "c", "a"},
				Rows: [][]any{
					{"IT", "2020-02-15", int64(7), nil, nil},
					{"US", "2020-02-15", nil, "y", int64(2)},
					{"US", "2020-02-16", int64(1), "x", int64(1)},
				},
			},
		},
		"single key column collapses dates": {
			keys:   []string{"key"},
			tables: []*Table{first},
			expected: &Table{
				Columns: []string{"key", "date", "a", "b"},
				Rows: [][]any{
					{"US", "2020-02-15", int64(2), int64(1)},
				},
			},
		},
		"nil tables are ignored": {
			keys:   []string{"key"},
			tables: []*Table{nil},
			expected: &Table{
				Columns: []string{"key"},
				Rows:    [][]any{},
			},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, Merge(tc.keys, tc.tables...))
		})
	}
}
