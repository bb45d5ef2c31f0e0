// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package sqltable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver
	_ "modernc.org/sqlite"             // registers the sqlite driver

	"github.com/mia-platform/odp/internal/config"
	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/logger"
)

const (
	loggerName = "odp:destination:sqltable"

	// DriverSQLite and DriverPostgres are the database/sql driver names supported.
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"

	// maxBatchRows caps the rows of a single INSERT; wide tables get fewer so the
	// statement stays under the driver bind parameter limit.
	maxBatchRows = 500

	sqliteMaxParams   = 32766
	postgresMaxParams = 65535

	maxOpenConns    = 4
	connMaxLifetime = 10 * time.Minute
)

var (
	// ErrUnsupportedDriver reports a driver other than sqlite or pgx.
	ErrUnsupportedDriver = errors.New("unsupported sql driver")
	// ErrInvalidIdentifier reports a table or column name that cannot be used unquoted.
	ErrInvalidIdentifier = errors.New("invalid sql identifier")

	identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

var _ destination.Sender = &Destination{}

// Destination replaces a table with every output it receives.
type Destination struct {
	db     *sql.DB
	driver string
	table  string
}

// Open connects to the database identified by driver and dsn. When table is empty the
// pipeline name is used.
func Open(driver, dsn, table string) (*Destination, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
	if table != "" && !identifierRegex.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, table)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	if driver == DriverSQLite {
		// sqlite serializes writers
		db.SetMaxOpenConns(1)
	}

	return &Destination{db: db, driver: driver, table: table}, nil
}

// Close closes the underlying connection pool.
func (d *Destination) Close() error {
	return d.db.Close()
}

// Send drops and recreates the table inside a transaction and inserts every row.
func (d *Destination) Send(ctx context.Context, output *destination.Output) error {
	log := logger.Named(ctx, loggerName)

	tableName := d.table
	if tableName == "" {
		tableName = strings.ReplaceAll(output.Pipeline, "-", "_")
	}
	if !identifierRegex.MatchString(tableName) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, tableName)
	}

	columns, err := d.columnDefinitions(output)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quote(tableName)); err != nil {
		return fmt.Errorf("drop table %s: %w", tableName, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quote(tableName), strings.Join(columns, ", "))); err != nil {
		return fmt.Errorf("create table %s: %w", tableName, err)
	}

	rows := output.Table.Rows
	batchRows := d.batchRows(len(output.Table.Columns))
	for start := 0; start < len(rows); start += batchRows {
		end := min(start+batchRows, len(rows))
		statement, args := d.insertStatement(tableName, output.Table.Columns, rows[start:end])
		if _, err := tx.ExecContext(ctx, statement, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", tableName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	log.Info("table replaced", "driver", d.driver, "table", tableName, "rows", len(rows))
	return nil
}

func (d *Destination) columnDefinitions(output *destination.Output) ([]string, error) {
	types := make(map[string]string, len(output.Schema))
	for _, field := range output.Schema {
		types[field.Name] = field.Type
	}

	definitions := make([]string, 0, len(output.Table.Columns))
	for _, column := range output.Table.Columns {
		if !identifierRegex.MatchString(column) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, column)
		}
		definitions = append(definitions, quote(column)+" "+sqlType(types[column]))
	}
	return definitions, nil
}

func (d *Destination) insertStatement(tableName string, columns []string, rows [][]any) (string, []any) {
	quoted := make([]string, len(columns))
	for i, column := range columns {
		quoted[i] = quote(column)
	}

	builder := new(strings.Builder)
	fmt.Fprintf(builder, "INSERT INTO %s (%s) VALUES ", quote(tableName), strings.Join(quoted, ", "))

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString("(")
		for j, value := range row {
			if j > 0 {
				builder.WriteString(", ")
			}
			args = append(args, value)
			builder.WriteString(d.placeholder(len(args)))
		}
		builder.WriteString(")")
	}

	return builder.String(), args
}

// batchRows returns how many rows of columns values fit in one INSERT.
func (d *Destination) batchRows(columns int) int {
	maxParams := sqliteMaxParams
	if d.driver == DriverPostgres {
		maxParams = postgresMaxParams
	}
	return max(1, min(maxBatchRows, maxParams/max(columns, 1)))
}

func (d *Destination) placeholder(position int) string {
	if d.driver == DriverPostgres {
		return "$" + strconv.Itoa(position)
	}
	return "?"
}

func sqlType(schemaType string) string {
	switch schemaType {
	case config.TypeInt:
		return "BIGINT"
	case config.TypeFloat:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func quote(identifier string) string {
	return `"` + identifier + `"`
}
