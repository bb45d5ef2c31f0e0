// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package server exposes the loaded pipelines over HTTP using the Fiber framework.
// Next to the status routes under /-/ it lists pipelines, triggers runs and
// returns the run history. Requests outside /-/ are logged by the request middleware.
package server
