// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package notify publishes the report of every pipeline run to a message broker.
// A report is sent as a JSON document with the pipeline name, the run id and the
// outcome copied in the message attributes so that subscribers can filter on them.
package notify
