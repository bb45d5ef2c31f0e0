// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package writer

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/destination/encode"
)

var _ destination.Sender = &writerDestination{}

type writerDestination struct {
	writer io.Writer
	format encode.Format

	lock sync.Mutex
}

// NewDestination returns a Sender writing every output to w in the given format.
func NewDestination(w io.Writer, format encode.Format) destination.Sender {
	return &writerDestination{
		writer: w,
		format: format,
	}
}

func (d *writerDestination) Send(ctx context.Context, output *destination.Output) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	buffer := new(bytes.Buffer)
	if err := encode.Write(buffer, d.format, output); err != nil {
		return err
	}

	d.lock.Lock()
	defer d.lock.Unlock()
	_, err := buffer.WriteTo(d.writer)
	return err
}
