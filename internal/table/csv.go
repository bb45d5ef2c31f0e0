// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/iancoleman/strcase"
)

// ErrEmptyCSV reports a CSV input without a header row.
var ErrEmptyCSV = errors.New("empty csv input")

// CSVOptions tunes how ReadCSV decodes its input.
type CSVOptions struct {
	// Comma is the field delimiter, ',' when zero.
	Comma rune
	// SnakeCase normalizes the header names to snake_case.
	SnakeCase bool
	// Columns restricts the decoded columns; missing ones are returned as nil values.
	Columns []string
}

// ReadCSV decodes a CSV stream whose first record is the header. Cells are kept as
// strings and empty cells become nil.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyCSV
		}
		return nil, fmt.Errorf("parse csv header: %w", err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if opts.SnakeCase {
			name = strcase.ToSnake(name)
		}
		columns[i] = name
	}

	result := New(columns...)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}

		row := make([]any, len(columns))
		for i := range columns {
			if i >= len(record) || record[i] == "" {
				continue
			}
			row[i] = strings.Clone(record[i])
		}
		result.Rows = append(result.Rows, row)
	}

	if len(opts.Columns) > 0 {
		return result.Select(opts.Columns...), nil
	}
	return result, nil
}

// ReadCSVFile opens path and decodes it with ReadCSV.
func ReadCSVFile(path string, opts CSVOptions) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	result, err := ReadCSV(file, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return result, nil
}

// WriteCSV encodes t with a header row; nil cells are written as empty strings.
func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return err
	}

	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, value := range row {
			record[i] = FormatValue(value)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
