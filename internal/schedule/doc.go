// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package schedule triggers the loaded pipelines on a cron expression and reloads
// their configuration files when they change on disk.
package schedule
