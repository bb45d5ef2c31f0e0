// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package notify

import (
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"cloud.google.com/go/pubsub/v2/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/mia-platform/odp/internal/pipeline"
)

const (
	testProject = "test-project"
	testTopic   = "projects/test-project/topics/odp-runs"
)

func newFakePubSubNotifier(t *testing.T, topic string) (*pstest.Server, *PubSubNotifier) {
	t.Helper()

	srv := pstest.NewServer()
	t.Cleanup(func() { srv.Close() })

	notifier, err := NewPubSubNotifier(t.Context(), testProject, topic,
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		option.WithTelemetryDisabled(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { notifier.Close() })

	return srv, notifier
}

func TestPubSubNotifier(t *testing.T) {
	t.Parallel()

	srv, notifier := newFakePubSubNotifier(t, testTopic)
	_, err := notifier.client.TopicAdminClient.CreateTopic(t.Context(), &pubsubpb.Topic{Name: testTopic})
	require.NoError(t, err)

	report := testReport("")
	require.NoError(t, notifier.Notify(t.Context(), report))

	messages := srv.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, map[string]string{
		AttributePipeline: "mobility",
		AttributeRunID:    "2f9b7c4e-run",
		AttributeStatus:   StatusSucceeded,
	}, messages[0].Attributes)

	decoded := new(pipeline.Report)
	require.NoError(t, json.Unmarshal(messages[0].Data, decoded))
	assert.Equal(t, report, decoded)
}

func TestPubSubNotifierMissingTopic(t *testing.T) {
	t.Parallel()

	_, notifier := newFakePubSubNotifier(t, "projects/test-project/topics/missing")

	err := notifier.Notify(t.Context(), testReport(""))
	assert.ErrorIs(t, err, ErrNotify)
	assert.ErrorContains(t, err, "topic not found")
}

func TestHandleError(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		err             error
		expectedMessage string
	}{
		"not found": {
			err:             status.Error(codes.NotFound, "topic missing"),
			expectedMessage: "notify: topic not found: topic missing",
		},
		"permission denied": {
			err:             status.Error(codes.PermissionDenied, "caller lacks pubsub.topics.publish"),
			expectedMessage: "notify: access denied: caller lacks pubsub.topics.publish",
		},
		"other status": {
			err:             status.Error(codes.Unavailable, "try again"),
			expectedMessage: "notify: try again",
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := handleError(test.err)
			assert.ErrorIs(t, err, ErrNotify)
			assert.EqualError(t, err, test.expectedMessage)
		})
	}
}
