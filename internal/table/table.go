// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package table

import (
	"slices"
)

// Table is an ordered set of named columns and rows of nullable values. Every row
// holds exactly one value per column; a nil value is a missing cell.
type Table struct {
	Columns []string
	Rows    [][]any
}

// New returns an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{
		Columns: slices.Clone(columns),
		Rows:    make([][]any, 0),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Index returns the position of column name, or -1 when the table has no such column.
func (t *Table) Index(name string) int {
	return slices.Index(t.Columns, name)
}

// HasColumn reports whether the table has a column called name.
func (t *Table) HasColumn(name string) bool {
	return t.Index(name) >= 0
}

// Append adds a row; missing trailing values are nil and extra values are dropped.
func (t *Table) Append(values ...any) {
	row := make([]any, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// AppendRecord adds a row reading each column from record; absent keys are nil.
func (t *Table) AppendRecord(record map[string]any) {
	row := make([]any, len(t.Columns))
	for i, column := range t.Columns {
		row[i] = record[column]
	}
	t.Rows = append(t.Rows, row)
}

// AddColumn appends a new column set to fill on every row. Adding an existing column is a no-op.
func (t *Table) AddColumn(name string, fill any) {
	if t.HasColumn(name) {
		return
	}

	t.Columns = append(t.Columns, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], fill)
	}
}

// Value returns the cell at row for column; unknown columns read as nil.
func (t *Table) Value(row int, column string) any {
	idx := t.Index(column)
	if idx < 0 {
		return nil
	}
	return t.Rows[row][idx]
}

// Set writes the cell at row for column, adding the column when missing.
func (t *Table) Set(row int, column string, value any) {
	idx := t.Index(column)
	if idx < 0 {
		t.AddColumn(column, nil)
		idx = len(t.Columns) - 1
	}
	t.Rows[row][idx] = value
}

// Column returns a copy of all the values of column name, or nil if it does not exist.
func (t *Table) Column(name string) []any {
	idx := t.Index(name)
	if idx < 0 {
		return nil
	}

	values := make([]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		values = append(values, row[idx])
	}
	return values
}

// Record returns row as a column name to value map.
func (t *Table) Record(row int) map[string]any {
	record := make(map[string]any, len(t.Columns))
	for i, column := range t.Columns {
		record[column] = t.Rows[row][i]
	}
	return record
}

// Records returns every row as a column name to value map.
func (t *Table) Records() []map[string]any {
	records := make([]map[string]any, 0, len(t.Rows))
	for i := range t.Rows {
		records = append(records, t.Record(i))
	}
	return records
}

// Select returns a new table with columns in the given order; unknown columns are filled with nil.
func (t *Table) Select(columns ...string) *Table {
	indexes := make([]int, 0, len(columns))
	for _, column := range columns {
		indexes = append(indexes, t.Index(column))
	}

	selected := New(columns...)
	for _, row := range t.Rows {
		values := make([]any, len(columns))
		for i, idx := range indexes {
			if idx >= 0 {
				values[i] = row[idx]
			}
		}
		selected.Rows = append(selected.Rows, values)
	}
	return selected
}

// Rename changes column names in place following mapping; names not in mapping are kept.
func (t *Table) Rename(mapping map[string]string) {
	for i, column := range t.Columns {
		if renamed, ok := mapping[column]; ok {
			t.Columns[i] = renamed
		}
	}
}

// Drop removes the given columns in place.
func (t *Table) Drop(columns ...string) {
	keep := make([]int, 0, len(t.Columns))
	kept := make([]string, 0, len(t.Columns))
	for i, column := range t.Columns {
		if !slices.Contains(columns, column) {
			keep = append(keep, i)
			kept = append(kept, column)
		}
	}

	for r, row := range t.Rows {
		values := make([]any, 0, len(keep))
		for _, idx := range keep {
			values = append(values, row[idx])
		}
		t.Rows[r] = values
	}
	t.Columns = kept
}

// Filter returns a new table holding the rows for which keep returns true.
func (t *Table) Filter(keep func(record map[string]any) bool) *Table {
	filtered := New(t.Columns...)
	for i, row := range t.Rows {
		if keep(t.Record(i)) {
			filtered.Rows = append(filtered.Rows, slices.Clone(row))
		}
	}
	return filtered
}

// Concat appends the rows of other, aligning them by column name and adding columns
// that only other declares.
func (t *Table) Concat(other *Table) {
	for _, column := range other.Columns {
		t.AddColumn(column, nil)
	}

	for i := range other.Rows {
		t.AppendRecord(other.Record(i))
	}
}

// Clone returns a deep copy of the table structure; cell values are shared.
func (t *Table) Clone() *Table {
	cloned := New(t.Columns...)
	for _, row := range t.Rows {
		cloned.Rows = append(cloned.Rows, slices.Clone(row))
	}
	return cloned
}

// Unique returns the distinct non-nil values of column in order of first appearance.
func (t *Table) Unique(column string) []any {
	seen := make(map[string]struct{})
	values := make([]any, 0)
	for _, value := range t.Column(column) {
		if value == nil {
			continue
		}

		formatted := FormatValue(value)
		if _, ok := seen[formatted]; ok {
			continue
		}
		seen[formatted] = struct{}{}
		values = append(values, value)
	}
	return values
}
