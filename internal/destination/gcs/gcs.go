// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package gcs

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/destination/encode"
	"github.com/mia-platform/odp/internal/destination/object"
	"github.com/mia-platform/odp/internal/info"
)

// ErrMissingBucket reports a target without a bucket name.
var ErrMissingBucket = errors.New("gcs bucket name is required")

var _ object.Store = &Store{}

// Store uploads objects to a bucket.
type Store struct {
	client *storage.Client
	bucket string
}

// NewStore returns a Store writing to bucket. opts are passed to the storage client.
func NewStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*Store, error) {
	if bucket == "" {
		return nil, ErrMissingBucket
	}

	clientOptions := append([]option.ClientOption{option.WithUserAgent(info.UserAgent())}, opts...)
	client, err := storage.NewClient(ctx, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}

	return &Store{client: client, bucket: bucket}, nil
}

// NewDestination returns a Sender uploading outputs to bucket under prefix.
func NewDestination(ctx context.Context, bucket, prefix string, format encode.Format, opts ...option.ClientOption) (destination.Sender, error) {
	store, err := NewStore(ctx, bucket, opts...)
	if err != nil {
		return nil, err
	}
	return object.NewDestination(store, prefix, format), nil
}

// Put uploads data as the object called name, replacing any previous version.
func (s *Store) Put(ctx context.Context, name, contentType string, data []byte) error {
	writer := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

func (s *Store) Location(name string) string {
	return fmt.Sprintf("gs://%s/%s", s.bucket, name)
}

// Close releases the storage client.
func (s *Store) Close() error {
	return s.client.Close()
}
