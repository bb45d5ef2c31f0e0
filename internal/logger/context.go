// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"context"
)

type contextKeyType struct{}

var contextKey = contextKeyType{}

// WithContext stores logger in a child of ctx.
func WithContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextKey, logger)
}

// FromContext returns the logger stored in ctx, or a logger discarding every message.
func FromContext(ctx context.Context) Logger {
	if ctx == nil {
		return nullLogger
	}
	if logger, ok := ctx.Value(contextKey).(Logger); ok {
		return logger
	}
	return nullLogger
}

// Named returns the logger stored in ctx renamed for a component, such as "odp:pipeline".
func Named(ctx context.Context, name string) Logger {
	return FromContext(ctx).WithName(name)
}
