// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package s3 implements an object store backed by an S3 compatible bucket.
package s3
