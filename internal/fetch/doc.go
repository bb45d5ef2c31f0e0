// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package fetch downloads the resources listed in the fetch section of a source into a
// local cache directory. It supports http and https URLs, Google Cloud Storage objects
// (gs://bucket/object), file:// URLs and plain local paths.
package fetch
