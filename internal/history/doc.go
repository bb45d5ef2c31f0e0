// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package history keeps the reports of past pipeline runs in a SQLite database.
package history
