// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package table holds the in-memory tabular representation shared by source handlers,
// the pipeline engine and destinations, together with CSV decoding, schema casting and
// key based merging.
package table
