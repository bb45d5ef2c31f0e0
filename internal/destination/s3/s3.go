// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/caarlos0/env/v11"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/destination/encode"
	"github.com/mia-platform/odp/internal/destination/object"
)

var (
	// ErrMissingEnvVariable reports missing mandatory environment variables.
	ErrMissingEnvVariable = errors.New("missing environment variable")
	// ErrMissingBucket reports a target without a bucket name.
	ErrMissingBucket = errors.New("s3 bucket name is required")
)

// Config holds the endpoint and credentials of the object storage.
type Config struct {
	Endpoint        string `env:"ODP_S3_ENDPOINT" envDefault:"s3.amazonaws.com"`
	AccessKeyID     string `env:"ODP_S3_ACCESS_KEY"`
	SecretAccessKey string `env:"ODP_S3_SECRET_KEY"`
	Region          string `env:"ODP_S3_REGION" envDefault:"us-east-1"`
	UseSSL          bool   `env:"ODP_S3_USE_SSL" envDefault:"true"`
}

// LoadConfig reads the object storage settings from the environment.
func LoadConfig() (Config, error) {
	config, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	return config, config.Validate()
}

// Validate checks the mandatory settings.
func (c Config) Validate() error {
	switch {
	case len(c.AccessKeyID) == 0:
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "ODP_S3_ACCESS_KEY")
	case len(c.SecretAccessKey) == 0:
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "ODP_S3_SECRET_KEY")
	}
	return nil
}

// NewClient builds a minio client. The endpoint may be a bare host or a URL whose scheme
// decides the transport security.
func (c Config) NewClient() (*minio.Client, error) {
	endpoint := c.Endpoint
	secure := c.UseSSL
	if parsed, err := url.Parse(c.Endpoint); err == nil && parsed.Host != "" {
		endpoint = parsed.Host
		secure = parsed.Scheme == "https"
	}

	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKeyID, c.SecretAccessKey, ""),
		Secure: secure,
		Region: c.Region,
	})
}

var _ object.Store = &Store{}

// Store uploads objects to a bucket.
type Store struct {
	client *minio.Client
	bucket string
}

// NewStore returns a Store writing to bucket through client.
func NewStore(client *minio.Client, bucket string) (*Store, error) {
	if bucket == "" {
		return nil, ErrMissingBucket
	}
	return &Store{client: client, bucket: bucket}, nil
}

// NewDestination returns a Sender uploading outputs to bucket under prefix, using the
// endpoint configured in the environment.
func NewDestination(bucket, prefix string, format encode.Format) (destination.Sender, error) {
	if bucket == "" {
		return nil, ErrMissingBucket
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	client, err := config.NewClient()
	if err != nil {
		return nil, err
	}

	store, err := NewStore(client, bucket)
	if err != nil {
		return nil, err
	}
	return object.NewDestination(store, prefix, format), nil
}

// Put uploads data as the object called name, replacing any previous version.
func (s *Store) Put(ctx context.Context, name, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		var response minio.ErrorResponse
		if errors.As(err, &response) && response.Code != "" {
			return fmt.Errorf("%s: %w", response.Code, err)
		}
		return err
	}
	return nil
}

func (s *Store) Location(name string) string {
	return fmt.Sprintf("s3://%s/%s", s.bucket, name)
}
