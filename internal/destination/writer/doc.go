// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package writer implements a destination that writes the received outputs to the
// given io.Writer instance.
// It is primarily useful for debugging purposes, or for inspecting the merged table of a
// pipeline before configuring a real destination.
package writer
