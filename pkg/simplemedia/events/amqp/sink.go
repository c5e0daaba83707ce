// Package amqp publishes media lifecycle events to a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

const (
	DefaultExchange = "media.events"

	RoutingAssetReclaimed    = "asset.reclaimed"
	RoutingThumbnailAttached = "thumbnail.attached"
	RoutingThumbnailDegraded = "thumbnail.degraded"
	RoutingRecordsDeleted    = "records.deleted"
	RoutingStatusChanged     = "status.changed"
)

// Publisher is the part of *amqp.Channel the sink needs.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Sink implements simplemedia.EventSink.
type Sink struct {
	publisher Publisher
	exchange  string
	now       func() time.Time
}

type thumbnailMessage struct {
	VideoID int64                       `json:"video_id"`
	Result  simplemedia.ThumbnailResult `json:"result"`
}

type deletedMessage struct {
	Kind simplemedia.RecordKind `json:"kind"`
	IDs  []int64                `json:"ids"`
}

type statusMessage struct {
	IDs     []int64                 `json:"ids"`
	Status  simplemedia.VideoStatus `json:"status"`
	Updated int64                   `json:"updated"`
}

// NewSink returns a Sink publishing to exchange through publisher. The
// exchange must already exist; see DeclareExchange.
func NewSink(publisher Publisher, exchange string) *Sink {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Sink{publisher: publisher, exchange: exchange, now: time.Now}
}

// DeclareExchange declares a durable topic exchange on channel.
func DeclareExchange(channel *amqp.Channel, exchange string) error {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return nil
}

// Dial connects to url, declares exchange and returns a Sink on a fresh
// channel. The returned close function releases the channel and connection.
func Dial(url, exchange string) (*Sink, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := DeclareExchange(channel, exchange); err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, err
	}
	closer := func() error {
		channel.Close()
		return conn.Close()
	}
	return NewSink(channel, exchange), closer, nil
}

func (s *Sink) AssetReclaimed(ctx context.Context, event simplemedia.AssetReclaimedEvent) error {
	return s.publish(ctx, RoutingAssetReclaimed, event)
}

func (s *Sink) ThumbnailGenerated(ctx context.Context, videoID int64, result simplemedia.ThumbnailResult) error {
	key := RoutingThumbnailAttached
	if result.Degraded() {
		key = RoutingThumbnailDegraded
	}
	return s.publish(ctx, key, thumbnailMessage{VideoID: videoID, Result: result})
}

func (s *Sink) RecordsDeleted(ctx context.Context, kind simplemedia.RecordKind, ids []int64) error {
	return s.publish(ctx, RoutingRecordsDeleted, deletedMessage{Kind: kind, IDs: ids})
}

func (s *Sink) StatusChanged(ctx context.Context, ids []int64, status simplemedia.VideoStatus, updated int64) error {
	return s.publish(ctx, RoutingStatusChanged, statusMessage{IDs: ids, Status: status, Updated: updated})
}

func (s *Sink) publish(ctx context.Context, routingKey string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return s.publisher.PublishWithContext(
		ctx,
		s.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    s.now(),
		},
	)
}

var _ simplemedia.EventSink = (*Sink)(nil)
