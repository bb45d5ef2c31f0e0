// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package pipeline interprets a pipeline configuration.
// A pipeline resolves the source handlers named in the configuration, fetches their
// resources, parses them, matches the rows to location keys using the metadata auxiliary
// table, casts them to the schema and merges every source into a single table that is
// delivered to the configured destinations.
package pipeline
