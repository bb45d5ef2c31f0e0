// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package source

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrUnknownHandler reports a source name without a registered handler.
var ErrUnknownHandler = errors.New("unknown source handler")

// Factory builds a new handler instance for a pipeline.
type Factory func() DataSource

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a handler available under name. Registering the same name twice panics.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("source: Register factory is nil for " + name)
	}
	if _, exists := registry[name]; exists {
		panic("source: Register called twice for " + name)
	}
	registry[name] = factory
}

// Lookup returns a new instance of the handler registered as name.
func Lookup(name string) (DataSource, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, name)
	}
	return factory(), nil
}

// Names returns the registered handler names sorted alphabetically.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
