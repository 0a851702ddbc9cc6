package event

import (
	"context"
	"errors"
	"time"

	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/erp/reconciliation/internal/infrastructure/config"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// MessageReader is the part of *kafka.Reader the consumer needs
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaReader builds a consumer-group reader with manual commits
func NewKafkaReader(cfg config.KafkaConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.ConsumerGroup,
		Topic:          cfg.Topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0,
	})
}

// KafkaConsumer reads envelopes, rebuilds the events and hands them to a
// handler. Offsets are committed only after the handler succeeds, so delivery
// is at least once; pair the handler with IdempotentHandler.
type KafkaConsumer struct {
	reader     MessageReader
	serializer *EventSerializer
	handler    shared.EventHandler
	logger     *zap.Logger
	retryDelay time.Duration
}

// NewKafkaConsumer creates a new KafkaConsumer
func NewKafkaConsumer(reader MessageReader, serializer *EventSerializer, handler shared.EventHandler, logger *zap.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		reader:     reader,
		serializer: serializer,
		handler:    handler,
		logger:     logger,
		retryDelay: 200 * time.Millisecond,
	}
}

// Run consumes until ctx is cancelled. Messages that cannot be decoded are
// logged and committed; handler failures are retried in place.
func (c *KafkaConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *KafkaConsumer) process(ctx context.Context, msg kafka.Message) error {
	headers := headerCarrier(msg.Headers)
	msgCtx := otel.GetTextMapPropagator().Extract(ctx, &headers)

	e, env, err := c.serializer.Decode(msg.Value)
	if err != nil {
		c.logger.Warn("Skipping undecodable event",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return c.reader.CommitMessages(ctx, msg)
	}

	for {
		err := c.handler.Handle(msgCtx, e)
		if err == nil {
			break
		}
		c.logger.Warn("Event handler failed, retrying",
			zap.String("event_type", env.EventType),
			zap.String("dedup_key", env.DedupKey),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	if err := c.reader.CommitMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
