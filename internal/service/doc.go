// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package service keeps the set of pipelines served by a long running process.
// It loads configuration files, serializes runs of the same pipeline, records
// every report in the run history and publishes it to the configured notifiers.
package service
