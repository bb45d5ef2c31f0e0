// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package gcs implements an object store backed by a Google Cloud Storage bucket.
// Credentials are discovered with Application Default Credentials.
package gcs
