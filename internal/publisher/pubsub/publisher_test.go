package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestTopic(t *testing.T) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "hotterms-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "runs")
	require.NoError(t, err)
	return srv, topic
}

func TestPublishSendsJSONWithEventAttribute(t *testing.T) {
	t.Parallel()

	srv, topic := newTestTopic(t)
	pub := New(topic)
	defer pub.Close()

	id, err := pub.Publish(context.Background(), "run.summary", map[string]any{"run_id": "r-1", "accounts": 2})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, "run.summary", msgs[0].Attributes[AttrEvent])

	var got map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "r-1", got["run_id"])
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "run.summary", "x")
	require.ErrorIs(t, err, ErrNotConfigured)

	_, topic := newTestTopic(t)
	pub := New(topic)
	defer pub.Close()
	_, err = pub.Publish(context.Background(), "run.summary", func() {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal payload")
}
