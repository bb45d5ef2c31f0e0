// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"

	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/destination/encode"
	"github.com/mia-platform/odp/internal/destination/object"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

var _ object.Store = &Store{}

// Store writes objects as files below a root directory.
type Store struct {
	root string
}

// NewStore returns a Store rooted at dir, creating it when missing.
func NewStore(dir string) (*Store, error) {
	root, err := homedir.Expand(dir)
	if err != nil {
		return nil, err
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(root, dirPermissions); err != nil {
		return nil, fmt.Errorf("output directory %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// NewDestination returns a Sender writing outputs encoded in format inside dir.
func NewDestination(dir string, format encode.Format) (destination.Sender, error) {
	store, err := NewStore(dir)
	if err != nil {
		return nil, err
	}
	return object.NewDestination(store, "", format), nil
}

// Put replaces the file called name. The content is written to a temporary file first so
// readers never observe a partial output.
func (s *Store) Put(ctx context.Context, name, _ string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := s.Location(name)
	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return err
	}

	temp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(temp.Name())

	if _, err := temp.Write(data); err != nil {
		temp.Close()
		return err
	}
	if err := temp.Chmod(filePermissions); err != nil {
		temp.Close()
		return err
	}
	if err := temp.Close(); err != nil {
		return err
	}

	return os.Rename(temp.Name(), target)
}

// Location returns the absolute path of the file called name.
func (s *Store) Location(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}
