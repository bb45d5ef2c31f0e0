// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mia-platform/odp/internal/destination"
	"github.com/mia-platform/odp/internal/info"
	"github.com/mia-platform/odp/internal/logger"
)

const (
	loggerName = "odp:destination:catalog"

	defaultTokenPath = "/oauth/token"
)

var (
	errMultipleAuthMethods = errors.New("only one of ODP_CATALOG_TOKEN or ODP_CATALOG_CLIENT_ID can be set")
	errMissingClientSecret = errors.New("ODP_CATALOG_CLIENT_SECRET is required with ODP_CATALOG_CLIENT_ID")
	errMissingClientID     = errors.New("ODP_CATALOG_CLIENT_ID is required with ODP_CATALOG_CLIENT_SECRET")
	errInvalidBatchSize    = errors.New("ODP_CATALOG_BATCH_SIZE must be positive")
)

var _ destination.Sender = &catalogDestination{}

// CatalogError wraps every failure of the catalog destination.
type CatalogError struct {
	err error
}

func (e *CatalogError) Error() string {
	return "catalog: " + e.err.Error()
}

func (e *CatalogError) Unwrap() error {
	return e.err
}

func (e *CatalogError) Is(target error) bool {
	cre, ok := target.(*CatalogError)
	if !ok {
		return false
	}

	return e.err.Error() == cre.err.Error()
}

// catalogDestination implements destination.Sender posting rows to the catalog endpoint.
type catalogDestination struct {
	CatalogEndpoint string
	Token           string `env:"ODP_CATALOG_TOKEN"`
	ClientID        string `env:"ODP_CATALOG_CLIENT_ID"`
	ClientSecret    string `env:"ODP_CATALOG_CLIENT_SECRET"`
	AuthEndpoint    string `env:"ODP_CATALOG_TOKEN_URL"`
	BatchSize       int    `env:"ODP_CATALOG_BATCH_SIZE" envDefault:"1000"`

	client *http.Client
}

// batch is the document posted for every slice of rows.
type batch struct {
	Pipeline  string           `json:"pipeline"`
	RunID     string           `json:"runId"`
	CreatedAt time.Time        `json:"createdAt"`
	Batch     int              `json:"batch"`
	Batches   int              `json:"batches"`
	Schema    []schemaField    `json:"schema"`
	Rows      []map[string]any `json:"rows"`
}

type schemaField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// NewDestination returns a new destination.Sender posting to endpoint. The authentication
// settings are read from environment variables.
func NewDestination(ctx context.Context, endpoint string) (destination.Sender, error) {
	dest, err := env.ParseAs[catalogDestination]()
	if err != nil {
		return nil, handleError(err)
	}

	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, handleError(err)
	}
	dest.CatalogEndpoint = endpointURL.String()

	if dest.AuthEndpoint == "" {
		dest.AuthEndpoint = endpointURL.Scheme + "://" + endpointURL.Host + defaultTokenPath
	} else if _, err := url.Parse(dest.AuthEndpoint); err != nil {
		return nil, handleError(err)
	}

	if err := dest.validate(); err != nil {
		return nil, handleError(err)
	}

	dest.client = &http.Client{Transport: dest.transport(ctx)}
	return &dest, nil
}

func (d *catalogDestination) validate() error {
	switch {
	case d.Token != "" && d.ClientID != "":
		return errMultipleAuthMethods
	case d.ClientID != "" && d.ClientSecret == "":
		return errMissingClientSecret
	case d.ClientSecret != "" && d.ClientID == "":
		return errMissingClientID
	case d.BatchSize <= 0:
		return errInvalidBatchSize
	}
	return nil
}

// transport returns a RoundTripper that authenticates with either a static token or the
// client credentials flow.
func (d *catalogDestination) transport(ctx context.Context) http.RoundTripper {
	var source oauth2.TokenSource
	switch {
	case d.ClientID != "":
		config := clientcredentials.Config{
			ClientID:     d.ClientID,
			ClientSecret: d.ClientSecret,
			TokenURL:     d.AuthEndpoint,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		source = config.TokenSource(ctx)
	case d.Token != "":
		source = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: d.Token, TokenType: "Bearer"})
	}

	if source == nil {
		return http.DefaultTransport
	}

	return &oauth2.Transport{
		Source: source,
		Base:   http.DefaultTransport,
	}
}

// Send implements destination.Sender.
func (d *catalogDestination) Send(ctx context.Context, output *destination.Output) error {
	log := logger.Named(ctx, loggerName)

	schema := make([]schemaField, 0, len(output.Schema))
	for _, field := range output.Schema {
		schema = append(schema, schemaField{Name: field.Name, Type: field.Type})
	}

	records := output.Table.Records()
	batches := max((len(records)+d.BatchSize-1)/d.BatchSize, 1)
	for idx := range batches {
		start := idx * d.BatchSize
		end := min(start+d.BatchSize, len(records))

		err := d.post(ctx, &batch{
			Pipeline:  output.Pipeline,
			RunID:     output.RunID,
			CreatedAt: output.CreatedAt,
			Batch:     idx,
			Batches:   batches,
			Schema:    schema,
			Rows:      records[start:end],
		})
		if err != nil {
			return err
		}
	}

	log.Info("output published", "endpoint", d.CatalogEndpoint, "rows", len(records), "batches", batches)
	return nil
}

// post sends one batch to the catalog API.
func (d *catalogDestination) post(ctx context.Context, data *batch) error {
	body, err := json.Marshal(data)
	if err != nil {
		return handleError(err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, d.CatalogEndpoint, bytes.NewReader(body))
	if err != nil {
		return handleError(err)
	}

	request.Header.Set("User-Agent", info.UserAgent())
	request.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(request)
	if err != nil {
		return handleError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		decoder := json.NewDecoder(resp.Body)
		var respBody map[string]any
		if err := decoder.Decode(&respBody); err == nil {
			if message, ok := respBody["message"].(string); ok {
				return handleError(errors.New(message))
			}
		}

		return handleError(fmt.Errorf("unexpected status code %d", resp.StatusCode))
	}

	return nil
}

func handleError(err error) error {
	var parseErr env.AggregateError
	if errors.As(err, &parseErr) {
		err = parseErr.Errors[0]
	}

	return &CatalogError{
		err: err,
	}
}
