package event

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/erp/reconciliation/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Kafka header names set on every published message
const (
	HeaderEventType = "event_type"
	HeaderDedupKey  = "dedup_key"
)

// MessageWriter is the part of *kafka.Writer the publisher needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a synchronous writer that hashes message keys onto
// partitions and waits for all in-sync replicas.
func NewKafkaWriter(cfg config.KafkaConfig) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           cfg.BatchTimeout,
		AllowAutoTopicCreation: true,
	}
}

// KafkaPublisher writes domain events as JSON envelopes. Messages are keyed
// by the event's partition key, so every event of one order lands on one
// partition in publish order.
type KafkaPublisher struct {
	writer     MessageWriter
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewKafkaPublisher creates a new KafkaPublisher
func NewKafkaPublisher(writer MessageWriter, serializer *EventSerializer, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, serializer: serializer, logger: logger}
}

// Publish writes all events in one batch
func (p *KafkaPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := p.serializer.Encode(e)
		if err != nil {
			return err
		}
		headers := headerCarrier{
			{Key: HeaderEventType, Value: []byte(e.EventType())},
			{Key: HeaderDedupKey, Value: []byte(e.DedupKey())},
		}
		otel.GetTextMapPropagator().Inject(ctx, &headers)
		msgs = append(msgs, kafka.Message{
			Key:     []byte(e.PartitionKey()),
			Value:   value,
			Time:    e.OccurredAt(),
			Headers: headers,
		})
	}

	start := time.Now()
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write of %d events: %w", len(msgs), err)
	}
	p.logger.Debug("Events published to Kafka",
		zap.Int("count", len(msgs)),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// Close flushes and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// headerCarrier adapts Kafka headers to an OpenTelemetry TextMapCarrier
type headerCarrier []kafka.Header

func (c *headerCarrier) Get(key string) string {
	for _, h := range *c {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range *c {
		if h.Key == key {
			(*c)[i].Value = []byte(value)
			return
		}
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, len(*c))
	for i, h := range *c {
		keys[i] = h.Key
	}
	return keys
}

var _ shared.EventPublisher = (*KafkaPublisher)(nil)
