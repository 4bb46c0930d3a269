package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/wb-product-ingest/internal/product"
)

func TestPublishRunSummary(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close()

	topic, err := client.CreateTopic(ctx, "runs")
	require.NoError(t, err)

	pub, err := New(topic)
	require.NoError(t, err)
	defer pub.Close()

	summary := product.RunSummary{
		RunID:      "run-1",
		Total:      3,
		Written:    2,
		Failed:     1,
		OutputURI:  "gs://bucket/products/run-1.jsonl",
		FinishedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	id, err := pub.Publish(ctx, summary)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "run-1", msgs[0].Attributes["run_id"])
	assert.Equal(t, "1", msgs[0].Attributes["failed"])

	var got product.RunSummary
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, summary, got)
}

func TestNewRequiresTopic(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.Error(t, err)

	var p *Publisher
	_, err = p.Publish(context.Background(), product.RunSummary{})
	require.Error(t, err)
}

func TestOpenValidates(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), "", "topic")
	require.ErrorContains(t, err, "pubsub.project_id")
	_, err = Open(context.Background(), "project", "")
	require.ErrorContains(t, err, "pubsub.topic_name")
}
