package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type recordingPublisher struct {
	messages []published
	err      error
}

func (p *recordingPublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func TestSink_RoutingKeys(t *testing.T) {
	pub := &recordingPublisher{}
	sink := NewSink(pub, "")
	ctx := context.Background()

	require.NoError(t, sink.AssetReclaimed(ctx, simplemedia.AssetReclaimedEvent{
		Kind: simplemedia.RecordKindVideo, RecordID: 7, Field: simplemedia.FieldPayload, Key: "videos/a.mp4",
	}))
	require.NoError(t, sink.ThumbnailGenerated(ctx, 7, simplemedia.ThumbnailResult{State: simplemedia.ThumbnailAttached, Key: "a_thumb.jpg"}))
	require.NoError(t, sink.ThumbnailGenerated(ctx, 8, simplemedia.ThumbnailResult{State: simplemedia.ThumbnailDegraded, Reason: "decode"}))
	require.NoError(t, sink.RecordsDeleted(ctx, simplemedia.RecordKindVideo, []int64{1, 2}))
	require.NoError(t, sink.StatusChanged(ctx, []int64{1, 2}, simplemedia.VideoStatusArchived, 1))

	require.Len(t, pub.messages, 5)
	var keys []string
	for _, m := range pub.messages {
		assert.Equal(t, DefaultExchange, m.exchange)
		assert.Equal(t, "application/json", m.msg.ContentType)
		assert.Equal(t, amqp.Persistent, m.msg.DeliveryMode)
		keys = append(keys, m.key)
	}
	assert.Equal(t, []string{
		RoutingAssetReclaimed, RoutingThumbnailAttached, RoutingThumbnailDegraded,
		RoutingRecordsDeleted, RoutingStatusChanged,
	}, keys)

	var status statusMessage
	require.NoError(t, json.Unmarshal(pub.messages[4].msg.Body, &status))
	assert.Equal(t, simplemedia.VideoStatusArchived, status.Status)
	assert.Equal(t, int64(1), status.Updated)
}

func TestSink_PublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("channel closed")}
	sink := NewSink(pub, "custom")

	err := sink.RecordsDeleted(context.Background(), simplemedia.RecordKindCategory, []int64{3})
	assert.EqualError(t, err, "channel closed")
}
