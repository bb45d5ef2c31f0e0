// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azeventhubs/v2"

	"github.com/mia-platform/odp/internal/pipeline"
)

const eventContentType = "application/json"

var _ Notifier = &EventHubsNotifier{}

// EventHubsNotifier publishes reports on an Azure Event Hub.
type EventHubsNotifier struct {
	producer *azeventhubs.ProducerClient
}

// NewEventHubsNotifier builds the producer from a connection string or from the
// namespace and the default Azure credential chain.
func NewEventHubsNotifier(c Config) (*EventHubsNotifier, error) {
	if c.EventHubConnectionString != "" {
		producer, err := azeventhubs.NewProducerClientFromConnectionString(c.EventHubConnectionString, c.EventHubName, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotify, err)
		}
		return &EventHubsNotifier{producer: producer}, nil
	}

	credentials, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotify, err)
	}

	producer, err := azeventhubs.NewProducerClient(c.eventHubFullyQualifiedNamespace(), c.EventHubName, credentials, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotify, err)
	}
	return &EventHubsNotifier{producer: producer}, nil
}

func (c Config) eventHubFullyQualifiedNamespace() string {
	if strings.Contains(c.EventHubNamespace, ".servicebus.windows.net") {
		return c.EventHubNamespace
	}

	return c.EventHubNamespace + ".servicebus.windows.net"
}

// Notify sends report as a single event partitioned by pipeline name.
func (n *EventHubsNotifier) Notify(ctx context.Context, report *pipeline.Report) error {
	event, err := newEventData(report)
	if err != nil {
		return err
	}

	batch, err := n.producer.NewEventDataBatch(ctx, &azeventhubs.EventDataBatchOptions{
		PartitionKey: &report.Pipeline,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotify, err)
	}

	if err := batch.AddEventData(event, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrNotify, err)
	}

	if err := n.producer.SendEventDataBatch(ctx, batch, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrNotify, err)
	}
	return nil
}

// Close closes the producer connection.
func (n *EventHubsNotifier) Close() error {
	return n.producer.Close(context.Background())
}

func newEventData(report *pipeline.Report) (*azeventhubs.EventData, error) {
	msg, err := newMessage(report)
	if err != nil {
		return nil, err
	}

	properties := make(map[string]any, len(msg.attributes))
	for key, value := range msg.attributes {
		properties[key] = value
	}

	contentType := eventContentType
	return &azeventhubs.EventData{
		Body:        msg.data,
		ContentType: &contentType,
		MessageID:   &report.RunID,
		Properties:  properties,
	}, nil
}
