// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package targets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/destination/azureblob"
	"github.com/mia-platform/odp/internal/destination/catalog"
	"github.com/mia-platform/odp/internal/destination/encode"
	"github.com/mia-platform/odp/internal/destination/file"
	"github.com/mia-platform/odp/internal/destination/gcs"
	"github.com/mia-platform/odp/internal/destination/s3"
	"github.com/mia-platform/odp/internal/destination/sqltable"
	"github.com/mia-platform/odp/internal/destination/writer"
)

const (
	// Stdout is the target writing csv to the standard output.
	Stdout = "-"

	formatParam = "format"
	tableParam  = "table"
)

// ErrUnsupportedTarget reports a target string with an unknown scheme.
var ErrUnsupportedTarget = errors.New("unsupported output target")

// Target is a parsed target string.
type Target struct {
	Scheme string
	// Location is the bucket, container, directory or DSN the target points to.
	Location string
	Prefix   string
	Format   encode.Format
	Table    string
}

// Parse splits a target string into its parts without opening anything.
func Parse(target string) (Target, error) {
	if target == Stdout {
		return Target{Scheme: "stdout", Format: encode.FormatCSV}, nil
	}

	if !strings.Contains(target, ":") {
		return parseFile(&url.URL{Path: target})
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %s: %w", ErrUnsupportedTarget, target, err)
	}

	switch parsed.Scheme {
	case "stdout":
		format, err := encode.ParseFormat(parsed.Query().Get(formatParam))
		if err != nil {
			return Target{}, err
		}
		return Target{Scheme: "stdout", Format: format}, nil
	case "file":
		return parseFile(parsed)
	case "sqlite":
		table := parsed.Query().Get(tableParam)
		path := parsed.Path
		if parsed.Host != "" {
			path = parsed.Host + path
		}
		return Target{Scheme: parsed.Scheme, Location: path, Table: table}, nil
	case "postgres", "postgresql":
		query := parsed.Query()
		table := query.Get(tableParam)
		query.Del(tableParam)
		parsed.RawQuery = query.Encode()
		return Target{Scheme: "postgres", Location: parsed.String(), Table: table}, nil
	case "gs", "azblob", "s3":
		format, err := encode.ParseFormat(parsed.Query().Get(formatParam))
		if err != nil {
			return Target{}, err
		}
		return Target{
			Scheme:   parsed.Scheme,
			Location: parsed.Host,
			Prefix:   strings.Trim(parsed.Path, "/"),
			Format:   format,
		}, nil
	case "http", "https":
		return Target{Scheme: parsed.Scheme, Location: parsed.String()}, nil
	default:
		return Target{}, fmt.Errorf("%w: %s", ErrUnsupportedTarget, target)
	}
}

func parseFile(parsed *url.URL) (Target, error) {
	format, err := encode.ParseFormat(parsed.Query().Get(formatParam))
	if err != nil {
		return Target{}, err
	}
	return Target{Scheme: "file", Location: parsed.Path, Format: format}, nil
}

// Open builds the destination described by target. stdout receives the output of the
// standard output targets.
func Open(ctx context.Context, target string, stdout io.Writer) (destination.Sender, error) {
	parsed, err := Parse(target)
	if err != nil {
		return nil, err
	}

	switch parsed.Scheme {
	case "stdout":
		return writer.NewDestination(stdout, parsed.Format), nil
	case "file":
		return file.NewDestination(parsed.Location, parsed.Format)
	case "sqlite":
		return sqltable.Open(sqltable.DriverSQLite, parsed.Location, parsed.Table)
	case "postgres":
		return sqltable.Open(sqltable.DriverPostgres, parsed.Location, parsed.Table)
	case "gs":
		return gcs.NewDestination(ctx, parsed.Location, parsed.Prefix, parsed.Format)
	case "azblob":
		return azureblob.NewDestination(parsed.Location, parsed.Prefix, parsed.Format)
	case "s3":
		return s3.NewDestination(parsed.Location, parsed.Prefix, parsed.Format)
	default:
		return catalog.NewDestination(ctx, parsed.Location)
	}
}

// OpenAll opens every target; on failure the destinations already opened are closed.
func OpenAll(ctx context.Context, targets []string, stdout io.Writer) ([]destination.Sender, error) {
	senders := make([]destination.Sender, 0, len(targets))
	for _, target := range targets {
		sender, err := Open(ctx, target, stdout)
		if err != nil {
			CloseAll(senders)
			return nil, fmt.Errorf("output %q: %w", target, err)
		}
		senders = append(senders, sender)
	}
	return senders, nil
}

// CloseAll closes the destinations holding resources.
func CloseAll(senders []destination.Sender) error {
	errorsList := make([]error, 0)
	for _, sender := range senders {
		if closer, ok := sender.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errorsList = append(errorsList, err)
			}
		}
	}
	return errors.Join(errorsList...)
}
