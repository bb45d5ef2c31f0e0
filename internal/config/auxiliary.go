// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
)

var (
	// ErrAuxiliaryPath reports an auxiliary reference that cannot be resolved under the data directory.
	ErrAuxiliaryPath = errors.New("invalid auxiliary path")
	// ErrUnknownAuxiliary reports a lookup for an auxiliary name not declared in the configuration.
	ErrUnknownAuxiliary = errors.New("unknown auxiliary table")
)

// LookupAuxiliary returns the reference declared with name.
func (c *Config) LookupAuxiliary(name string) (AuxiliaryRef, bool) {
	for _, ref := range c.Auxiliary {
		if ref.Name == name {
			return ref, true
		}
	}
	return AuxiliaryRef{}, false
}

// AuxiliaryPath resolves the file of the auxiliary table name under dataDir.
// The resolved path must exist and must not escape dataDir.
func (c *Config) AuxiliaryPath(name, dataDir string) (string, error) {
	ref, ok := c.LookupAuxiliary(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAuxiliary, name)
	}

	return ref.Resolve(dataDir)
}

// Resolve joins the reference path to dataDir and checks that the result stays inside it.
func (r AuxiliaryRef) Resolve(dataDir string) (string, error) {
	root, err := homedir.Expand(dataDir)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrAuxiliaryPath, r.Name, err)
	}

	root, err = filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrAuxiliaryPath, r.Name, err)
	}

	if filepath.IsAbs(r.Path) {
		return "", fmt.Errorf("%w: %s: %q must be relative to the data directory", ErrAuxiliaryPath, r.Name, r.Path)
	}

	resolved := filepath.Join(root, filepath.Clean(r.Path))
	relative, err := filepath.Rel(root, resolved)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s: %q escapes the data directory", ErrAuxiliaryPath, r.Name, r.Path)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrAuxiliaryPath, r.Name, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s: %q is a directory", ErrAuxiliaryPath, r.Name, r.Path)
	}

	return resolved, nil
}
