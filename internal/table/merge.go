// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package table

import (
	"cmp"
	"slices"
	"strings"
)

const keySeparator = "\x00"

// Merge combines tables on the keys columns. Rows sharing the same key collapse into
// one row where, column by column, the non-nil value of the table appearing later in
// the argument list wins. Rows with a nil key value are dropped. The output columns are
// the union of the input columns in order of first appearance and the rows are sorted
// by key.
func Merge(keys []string, tables ...*Table) *Table {
	columns := make([]string, 0)
	for _, key := range keys {
		if !slices.Contains(columns, key) {
			columns = append(columns, key)
		}
	}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, column := range t.Columns {
			if !slices.Contains(columns, column) {
				columns = append(columns, column)
			}
		}
	}

	merged := New(columns...)
	positions := make(map[string]int)
	for _, t := range tables {
		if t == nil {
			continue
		}

		targets := make([]int, len(t.Columns))
		for i, column := range t.Columns {
			targets[i] = merged.Index(column)
		}

		keyIndexes := make([]int, len(keys))
		for i, key := range keys {
			keyIndexes[i] = t.Index(key)
		}

		for _, row := range t.Rows {
			composite, ok := compositeKey(row, keyIndexes)
			if !ok {
				continue
			}

			position, exists := positions[composite]
			if !exists {
				position = len(merged.Rows)
				positions[composite] = position
				merged.Rows = append(merged.Rows, make([]any, len(columns)))
			}

			target := merged.Rows[position]
			for i, value := range row {
				if value != nil {
					target[targets[i]] = value
				}
			}
		}
	}

	SortBy(merged, keys...)
	return merged
}

// SortBy orders the rows of t by the text representation of the given columns.
func SortBy(t *Table, columns ...string) {
	indexes := make([]int, 0, len(columns))
	for _, column := range columns {
		if idx := t.Index(column); idx >= 0 {
			indexes = append(indexes, idx)
		}
	}

	slices.SortStableFunc(t.Rows, func(a, b []any) int {
		for _, idx := range indexes {
			if c := cmp.Compare(FormatValue(a[idx]), FormatValue(b[idx])); c != 0 {
				return c
			}
		}
		return 0
	})
}

func compositeKey(row []any, indexes []int) (string, bool) {
	parts := make([]string, 0, len(indexes))
	for _, idx := range indexes {
		if idx < 0 || row[idx] == nil {
			return "", false
		}
		parts = append(parts, FormatValue(row[idx]))
	}
	return strings.Join(parts, keySeparator), true
}
