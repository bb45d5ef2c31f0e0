// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package logger is the structured JSON logger shared by every odp component.
// Loggers travel through context.Context and are renamed per component with Named.
package logger
