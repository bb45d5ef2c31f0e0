// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/caarlos0/env/v11"

	"github.com/mia-platform/odp/internal/logger"
	"github.com/mia-platform/odp/internal/pipeline"
)

const (
	loggerName = "odp:notify"

	AttributePipeline = "pipeline"
	AttributeRunID    = "runId"
	AttributeStatus   = "status"

	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

var (
	// ErrNotify wraps every failure while publishing a report.
	ErrNotify = errors.New("notify")
	// ErrMissingEnvVariable reports missing mandatory environment variables.
	ErrMissingEnvVariable = errors.New("missing environment variable")
	// ErrInvalidEnvVariable reports incompatible environment variable values.
	ErrInvalidEnvVariable = errors.New("invalid environment value")
)

// Notifier publishes run reports.
type Notifier interface {
	Notify(ctx context.Context, report *pipeline.Report) error
}

// Config holds the broker settings; an empty configuration disables notifications.
type Config struct {
	PubSubProject string `env:"ODP_PUBSUB_PROJECT"`
	PubSubTopic   string `env:"ODP_PUBSUB_TOPIC"`

	EventHubConnectionString string `env:"ODP_EVENTHUB_CONNECTION_STRING"`
	EventHubNamespace        string `env:"ODP_EVENTHUB_NAMESPACE"`
	EventHubName             string `env:"ODP_EVENTHUB_NAME"`
}

// LoadConfig reads the broker settings from the environment.
func LoadConfig() (Config, error) {
	config, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	return config, config.Validate()
}

// Validate checks that every configured broker has its mandatory settings.
func (c Config) Validate() error {
	switch {
	case len(c.PubSubTopic) > 0 && len(c.PubSubProject) == 0:
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "ODP_PUBSUB_PROJECT")
	case len(c.PubSubProject) > 0 && len(c.PubSubTopic) == 0:
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "ODP_PUBSUB_TOPIC")
	case len(c.EventHubConnectionString) > 0 && len(c.EventHubNamespace) > 0:
		return fmt.Errorf("%w: %s", ErrInvalidEnvVariable, "only one of ODP_EVENTHUB_CONNECTION_STRING or ODP_EVENTHUB_NAMESPACE can be set")
	case len(c.EventHubNamespace) > 0 && len(c.EventHubName) == 0:
		return fmt.Errorf("%w: %s", ErrMissingEnvVariable, "ODP_EVENTHUB_NAME")
	}
	return nil
}

// Notifiers is the set of notifiers built from the configuration.
type Notifiers []Notifier

// New builds a notifier for every broker configured in c.
func New(ctx context.Context, c Config) (Notifiers, error) {
	notifiers := make(Notifiers, 0)
	if c.PubSubTopic != "" {
		notifier, err := NewPubSubNotifier(ctx, c.PubSubProject, c.PubSubTopic)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, notifier)
	}

	if c.EventHubConnectionString != "" || c.EventHubNamespace != "" {
		notifier, err := NewEventHubsNotifier(c)
		if err != nil {
			notifiers.Close(ctx)
			return nil, err
		}
		notifiers = append(notifiers, notifier)
	}

	return notifiers, nil
}

// Notify publishes report with every notifier. Failures are logged and do not stop the
// other notifiers; the joined errors are returned.
func (n Notifiers) Notify(ctx context.Context, report *pipeline.Report) error {
	log := logger.Named(ctx, loggerName)

	errorsList := make([]error, 0)
	for _, notifier := range n {
		if err := notifier.Notify(ctx, report); err != nil {
			log.Warn("run report not published", "pipeline", report.Pipeline, "runId", report.RunID, "error", err.Error())
			errorsList = append(errorsList, err)
		}
	}
	return errors.Join(errorsList...)
}

// Close releases the notifiers holding connections.
func (n Notifiers) Close(ctx context.Context) {
	log := logger.Named(ctx, loggerName)
	for _, notifier := range n {
		if closer, ok := notifier.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				log.Warn("error closing notifier", "error", err.Error())
			}
		}
	}
}

// message is the encoded report and its attributes.
type message struct {
	data       []byte
	attributes map[string]string
}

func newMessage(report *pipeline.Report) (*message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotify, err)
	}

	status := StatusSucceeded
	if report.Error != "" {
		status = StatusFailed
	}

	return &message{
		data: data,
		attributes: map[string]string{
			AttributePipeline: report.Pipeline,
			AttributeRunID:    report.RunID,
			AttributeStatus:   status,
		},
	}, nil
}
