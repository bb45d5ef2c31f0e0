// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/destination/encode"
	"github.com/mia-platform/odp/internal/logger"
)

const loggerName = "odp:destination:object"

// Store persists a named blob.
type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) error
	// Location returns a printable reference to the object called name.
	Location(name string) string
}

var _ destination.Sender = &objectDestination{}

type objectDestination struct {
	store  Store
	prefix string
	format encode.Format
}

// NewDestination returns a Sender uploading outputs encoded in format to store under prefix.
func NewDestination(store Store, prefix string, format encode.Format) destination.Sender {
	return &objectDestination{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		format: format,
	}
}

func (d *objectDestination) Send(ctx context.Context, output *destination.Output) error {
	log := logger.Named(ctx, loggerName)

	buffer := new(bytes.Buffer)
	if err := encode.Write(buffer, d.format, output); err != nil {
		return err
	}

	name := ObjectName(d.prefix, output, d.format)
	if err := d.store.Put(ctx, name, d.format.ContentType(), buffer.Bytes()); err != nil {
		return fmt.Errorf("upload %s: %w", d.store.Location(name), err)
	}

	log.Info("output uploaded", "location", d.store.Location(name), "rows", output.Table.Len(), "bytes", buffer.Len())
	return nil
}

// ObjectName returns the name of the object holding output.
func ObjectName(prefix string, output *destination.Output, format encode.Format) string {
	return path.Join(prefix, output.ObjectName(format.Extension()))
}

// Close releases the store when it holds resources.
func (d *objectDestination) Close() error {
	if closer, ok := d.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
