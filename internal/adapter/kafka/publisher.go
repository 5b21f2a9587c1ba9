package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/storm-radar-renderer/internal/config"
	"github.com/couchcryptid/storm-radar-renderer/internal/domain"
	"github.com/couchcryptid/storm-radar-renderer/internal/observability"
)

// messageWriter is the subset of *kafkago.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// FramePublisher produces frame rendered events to a Kafka topic.
// It implements pipeline.Publisher.
type FramePublisher struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewFramePublisher creates a Kafka producer for the configured frame topic.
func NewFramePublisher(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *FramePublisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaFrameTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &FramePublisher{writer: w, logger: logger, metrics: metrics}
}

// Publish writes one event keyed by its dataset id.
func (p *FramePublisher) Publish(ctx context.Context, event domain.FrameEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.PublishErrors.Inc()
		return fmt.Errorf("write frame event: %w", err)
	}
	p.metrics.FramesPublished.Inc()
	p.logger.Debug("frame event published", "dataset_id", event.DatasetID)
	return nil
}

func (p *FramePublisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a FrameEvent into a Kafka message.
func serializeToMessage(event domain.FrameEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize frame event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.DatasetID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "dataset_id", Value: []byte(event.DatasetID)},
			{Key: "rendered_at", Value: []byte(event.RenderedAt.Format(time.RFC3339))},
		},
	}, nil
}
