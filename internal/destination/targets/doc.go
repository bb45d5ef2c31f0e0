// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package targets builds destinations from target strings.
//
// Supported targets:
//
//	-                                 csv on the standard output
//	stdout:?format=json               the standard output in another format
//	/srv/out, file:///srv/out         a local directory
//	sqlite:///srv/out.db?table=name   a SQLite table, named after the pipeline by default
//	postgres://user@host/db?table=    a PostgreSQL table
//	gs://bucket/prefix                a Google Cloud Storage bucket
//	azblob://container/prefix         an Azure Blob Storage container
//	s3://bucket/prefix                an S3 compatible bucket
//	http://host/path, https://...     a data catalog endpoint
//
// File like targets accept a format query parameter: csv, json or parquet.
package targets
