// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package notify

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mia-platform/odp/internal/info"
	"github.com/mia-platform/odp/internal/pipeline"
)

var _ Notifier = &PubSubNotifier{}

// PubSubNotifier publishes reports on a Google Cloud Pub/Sub topic.
type PubSubNotifier struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
}

// NewPubSubNotifier returns a notifier publishing on topic, given as id or fully
// qualified name, of project.
func NewPubSubNotifier(ctx context.Context, project, topic string, opts ...option.ClientOption) (*PubSubNotifier, error) {
	clientOptions := append([]option.ClientOption{option.WithUserAgent(info.UserAgent())}, opts...)
	client, err := pubsub.NewClient(ctx, project, clientOptions...)
	if err != nil {
		return nil, handleError(err)
	}

	return &PubSubNotifier{
		client:    client,
		publisher: client.Publisher(topic),
	}, nil
}

// Notify publishes report and waits for the server acknowledgment.
func (n *PubSubNotifier) Notify(ctx context.Context, report *pipeline.Report) error {
	msg, err := newMessage(report)
	if err != nil {
		return err
	}

	result := n.publisher.Publish(ctx, &pubsub.Message{
		Data:       msg.data,
		Attributes: msg.attributes,
	})
	if _, err := result.Get(ctx); err != nil {
		return handleError(err)
	}
	return nil
}

// Close flushes the pending messages and closes the client.
func (n *PubSubNotifier) Close() error {
	n.publisher.Stop()
	return n.client.Close()
}

// handleError replaces gRPC status errors with their message and wraps them with ErrNotify.
func handleError(err error) error {
	if statusErr, ok := status.FromError(err); ok {
		switch statusErr.Code() {
		case codes.NotFound:
			err = fmt.Errorf("topic not found: %s", statusErr.Message())
		case codes.PermissionDenied, codes.Unauthenticated:
			err = fmt.Errorf("access denied: %s", statusErr.Message())
		default:
			err = errors.New(statusErr.Message())
		}
	}

	return fmt.Errorf("%w: %w", ErrNotify, err)
}
