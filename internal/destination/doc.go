// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package destination defines the contract used to deliver pipeline outputs.
// Implementations live in the sub packages and the targets package builds one from a
// target string such as "file:///srv/out?format=parquet", "sqlite:///srv/out.db" or "-"
// for the standard output.
package destination
