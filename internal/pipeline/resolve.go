// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package pipeline

import (
	"slices"
	"strings"

	"github.com/mia-platform/odp/internal/source"
	"github.com/mia-platform/odp/internal/table"
)

// nameColumns are compared after normalization when an exact match fails.
var nameColumns = map[string]struct{}{
	source.ColumnCountryName:    {},
	source.ColumnSubregion1Name: {},
	source.ColumnSubregion2Name: {},
	source.ColumnLocalityName:   {},
}

// fuzzyColumns are the metadata columns compared against a row match_string.
var fuzzyColumns = []string{
	source.ColumnSubregion1Code,
	source.ColumnSubregion1Name,
	source.ColumnSubregion2Code,
	source.ColumnSubregion2Name,
	source.ColumnLocalityCode,
	source.ColumnLocalityName,
	source.ColumnMatchString,
}

// resolveColumns are the row columns read while resolving a key.
var resolveColumns = append(slices.Clone(source.MatchColumns), source.ColumnMatchString)

// constraint restricts a metadata column. A nil value requires the column to be empty.
type constraint struct {
	column int
	value  any
	name   bool
}

// keyResolver assigns location keys to rows that carry match columns instead of a key.
// It is safe for concurrent use once built.
type keyResolver struct {
	metadata   *table.Table
	keyIdx     int
	normalized [][]string
}

func newKeyResolver(metadata *table.Table) *keyResolver {
	if metadata == nil || !metadata.HasColumn(source.ColumnKey) {
		return &keyResolver{keyIdx: -1}
	}

	normalized := make([][]string, len(metadata.Rows))
	for i, row := range metadata.Rows {
		normalized[i] = make([]string, len(row))
		for j, value := range row {
			if value != nil {
				normalized[i][j] = source.NormalizeMatch(table.FormatValue(value))
			}
		}
	}

	return &keyResolver{
		metadata:   metadata,
		keyIdx:     metadata.Index(source.ColumnKey),
		normalized: normalized,
	}
}

// Resolve returns a copy of t where every row has a key. Rows whose key cannot be
// resolved are dropped and counted.
func (r *keyResolver) Resolve(t *table.Table) (*table.Table, int) {
	resolved := t.Clone()
	resolved.AddColumn(source.ColumnKey, nil)
	keyIdx := resolved.Index(source.ColumnKey)

	matchIdx := make(map[string]int, len(resolveColumns))
	for _, column := range resolveColumns {
		if idx := resolved.Index(column); idx >= 0 {
			matchIdx[column] = idx
		}
	}

	cache := make(map[string]any)
	rows := resolved.Rows[:0]
	unmatched := 0
	for _, row := range resolved.Rows {
		if row[keyIdx] == nil && len(matchIdx) > 0 && r.keyIdx >= 0 {
			signature := rowSignature(row, matchIdx)
			key, ok := cache[signature]
			if !ok {
				key = r.lookup(row, matchIdx)
				cache[signature] = key
			}
			row[keyIdx] = key
		}

		if row[keyIdx] == nil {
			unmatched++
			continue
		}
		rows = append(rows, row)
	}
	resolved.Rows = rows

	return resolved, unmatched
}

func (r *keyResolver) lookup(row []any, matchIdx map[string]int) any {
	constraints := make([]constraint, 0, len(source.MatchColumns))
	for _, column := range source.MatchColumns {
		idx, ok := matchIdx[column]
		if !ok {
			continue
		}

		value := row[idx]
		if text, isText := value.(string); isText && text == "" {
			continue
		}

		metadataIdx := r.metadata.Index(column)
		if metadataIdx < 0 {
			continue
		}

		_, isName := nameColumns[column]
		constraints = append(constraints, constraint{column: metadataIdx, value: value, name: isName})
	}

	if candidates := r.candidates(constraints, false); len(candidates) == 1 {
		return r.metadata.Rows[candidates[0]][r.keyIdx]
	}

	relaxed := r.candidates(constraints, true)
	if len(relaxed) == 1 {
		return r.metadata.Rows[relaxed[0]][r.keyIdx]
	}

	idx, ok := matchIdx[source.ColumnMatchString]
	if !ok || row[idx] == nil {
		return nil
	}

	match := source.NormalizeMatch(table.FormatValue(row[idx]))
	if match == "" {
		return nil
	}

	found := -1
	for _, candidate := range r.candidates(withoutNames(constraints), false) {
		if !r.fuzzyMatch(candidate, match) {
			continue
		}
		if found >= 0 {
			return nil
		}
		found = candidate
	}

	if found < 0 {
		return nil
	}
	return r.metadata.Rows[found][r.keyIdx]
}

// candidates returns the metadata rows satisfying every constraint. With normalize set,
// name constraints compare the normalized forms.
func (r *keyResolver) candidates(constraints []constraint, normalize bool) []int {
	matches := make([]int, 0)
	for i, row := range r.metadata.Rows {
		if r.satisfies(i, row, constraints, normalize) {
			matches = append(matches, i)
		}
	}
	return matches
}

func (r *keyResolver) satisfies(rowIdx int, row []any, constraints []constraint, normalize bool) bool {
	for _, c := range constraints {
		value := row[c.column]
		switch {
		case c.value == nil:
			if value != nil {
				return false
			}
		case value == nil:
			return false
		case normalize && c.name:
			if r.normalized[rowIdx][c.column] != source.NormalizeMatch(table.FormatValue(c.value)) {
				return false
			}
		default:
			if table.FormatValue(value) != table.FormatValue(c.value) {
				return false
			}
		}
	}
	return true
}

func (r *keyResolver) fuzzyMatch(rowIdx int, match string) bool {
	for _, column := range fuzzyColumns {
		idx := r.metadata.Index(column)
		if idx >= 0 && r.normalized[rowIdx][idx] == match {
			return true
		}
	}
	return false
}

func withoutNames(constraints []constraint) []constraint {
	filtered := make([]constraint, 0, len(constraints))
	for _, c := range constraints {
		if !c.name || c.value == nil {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func rowSignature(row []any, matchIdx map[string]int) string {
	var builder strings.Builder
	for _, column := range resolveColumns {
		idx, ok := matchIdx[column]
		if !ok {
			builder.WriteString("\x01")
			continue
		}
		if row[idx] == nil {
			builder.WriteString("\x02")
			continue
		}
		builder.WriteString("\x03")
		builder.WriteString(table.FormatValue(row[idx]))
	}
	return builder.String()
}
