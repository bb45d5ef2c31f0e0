// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package encode

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/mia-platform/odp/internal/config"
	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/table"
)

// Format is a file format an output can be serialized to.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"

	parquetParallelism = 4
)

// ErrUnknownFormat reports a format name that is not supported.
var ErrUnknownFormat = errors.New("unknown output format")

// ParseFormat returns the Format called name; an empty name is csv.
func ParseFormat(name string) (Format, error) {
	switch format := Format(strings.ToLower(strings.TrimSpace(name))); format {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON, FormatParquet:
		return format, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
}

// Extension returns the file extension of the format.
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the media type used when the format is uploaded.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "text/csv"
	}
}

// Write serializes the output table to w.
func Write(w io.Writer, format Format, output *destination.Output) error {
	if output == nil || output.Table == nil {
		return errors.New("output has no table")
	}

	switch format {
	case FormatCSV, "":
		return table.WriteCSV(w, output.Table)
	case FormatJSON:
		encoder := json.NewEncoder(w)
		return encoder.Encode(output.Table.Records())
	case FormatParquet:
		return writeParquet(w, output)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

func writeParquet(w io.Writer, output *destination.Output) error {
	schema, err := parquetSchema(output)
	if err != nil {
		return err
	}

	file := writerfile.NewWriterFile(w)
	parquetWriter, err := writer.NewJSONWriter(schema, file, parquetParallelism)
	if err != nil {
		return fmt.Errorf("parquet schema: %w", err)
	}
	parquetWriter.CompressionType = parquet.CompressionCodec_SNAPPY

	for idx := range output.Table.Rows {
		row, err := json.Marshal(output.Table.Record(idx))
		if err != nil {
			_ = parquetWriter.WriteStop()
			return err
		}
		if err := parquetWriter.Write(string(row)); err != nil {
			_ = parquetWriter.WriteStop()
			return fmt.Errorf("parquet row %d: %w", idx, err)
		}
	}

	if err := parquetWriter.WriteStop(); err != nil {
		return fmt.Errorf("parquet footer: %w", err)
	}
	return file.Close()
}

// parquetSchema builds the JSON schema definition of the parquet-go writer. Every column
// is optional since any cell can be missing.
func parquetSchema(output *destination.Output) (string, error) {
	types := make(map[string]string, len(output.Schema))
	for _, field := range output.Schema {
		types[field.Name] = field.Type
	}

	fields := make([]map[string]string, 0, len(output.Table.Columns))
	for _, column := range output.Table.Columns {
		fields = append(fields, map[string]string{
			"Tag": fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", column, parquetType(types[column])),
		})
	}

	definition, err := json.Marshal(map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	})
	if err != nil {
		return "", err
	}
	return string(definition), nil
}

func parquetType(schemaType string) string {
	switch schemaType {
	case config.TypeInt:
		return "type=INT64"
	case config.TypeFloat:
		return "type=DOUBLE"
	default:
		return "type=BYTE_ARRAY, convertedtype=UTF8"
	}
}
