// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package azureblob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/caarlos0/env/v11"

	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/destination/encode"
	"github.com/mia-platform/odp/internal/destination/object"
)

var (
	// ErrMissingEnvVariable reports missing mandatory environment variables.
	ErrMissingEnvVariable = errors.New("missing environment variable")
	// ErrMissingContainer reports a target without a container name.
	ErrMissingContainer = errors.New("azure blob container name is required")
)

// Config holds the settings used to reach the storage account.
type Config struct {
	ConnectionString string `env:"AZURE_STORAGE_CONNECTION_STRING"`
	StorageAccount   string `env:"AZURE_STORAGE_ACCOUNT"`
}

// LoadConfig reads the storage account settings from the environment.
func LoadConfig() (Config, error) {
	config, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	return config, config.Validate()
}

// Validate checks that one way of reaching the account is configured.
func (c Config) Validate() error {
	if len(c.ConnectionString) == 0 && len(c.StorageAccount) == 0 {
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "one of AZURE_STORAGE_CONNECTION_STRING or AZURE_STORAGE_ACCOUNT must be present")
	}
	return nil
}

func (c Config) serviceURL() string {
	if strings.Contains(c.StorageAccount, ".blob.core.windows.net") {
		return c.StorageAccount
	}

	return fmt.Sprintf("https://%s.blob.core.windows.net/", c.StorageAccount)
}

// NewClient builds a blob service client from the configuration.
func (c Config) NewClient() (*azblob.Client, error) {
	if c.ConnectionString != "" {
		return azblob.NewClientFromConnectionString(c.ConnectionString, nil)
	}

	credentials, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azblob.NewClient(c.serviceURL(), credentials, nil)
}

var _ object.Store = &Store{}

// Store uploads objects as block blobs of a container.
type Store struct {
	client    *azblob.Client
	container string
}

// NewStore returns a Store writing to container through client.
func NewStore(client *azblob.Client, container string) (*Store, error) {
	if container == "" {
		return nil, ErrMissingContainer
	}
	return &Store{client: client, container: container}, nil
}

// NewDestination returns a Sender uploading outputs to container under prefix, using the
// account configured in the environment.
func NewDestination(container, prefix string, format encode.Format) (destination.Sender, error) {
	if container == "" {
		return nil, ErrMissingContainer
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	client, err := config.NewClient()
	if err != nil {
		return nil, err
	}

	store, err := NewStore(client, container)
	if err != nil {
		return nil, err
	}
	return object.NewDestination(store, prefix, format), nil
}

// Put uploads data as the blob called name, replacing any previous version.
func (s *Store) Put(ctx context.Context, name, contentType string, data []byte) error {
	_, err := s.client.UploadBuffer(ctx, s.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	return err
}

func (s *Store) Location(name string) string {
	return fmt.Sprintf("azblob://%s/%s", s.container, name)
}
