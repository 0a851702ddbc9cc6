package event

import (
	"context"
	"errors"

	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/erp/reconciliation/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// LogPublisher writes each event to the request logger. It is the fallback
// transport when Kafka is disabled and doubles as a consumer-side handler.
type LogPublisher struct{}

// NewLogPublisher creates a new LogPublisher
func NewLogPublisher() *LogPublisher { return &LogPublisher{} }

// Publish logs every event
func (LogPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	for _, e := range events {
		logEvent(ctx, "Domain event", e)
	}
	return nil
}

// Handle logs a consumed event
func (LogPublisher) Handle(ctx context.Context, e shared.DomainEvent) error {
	logEvent(ctx, "Domain event consumed", e)
	return nil
}

// EventTypes subscribes to everything
func (LogPublisher) EventTypes() []string { return nil }

func logEvent(ctx context.Context, msg string, e shared.DomainEvent) {
	logger.L(ctx).Info(msg,
		zap.String("event_type", e.EventType()),
		zap.String("event_id", e.EventID().String()),
		zap.String("aggregate_type", e.AggregateType()),
		zap.String("aggregate_id", e.AggregateID().String()),
		zap.String("partition_key", e.PartitionKey()),
		zap.Time("occurred_at", e.OccurredAt()),
	)
}

// CompositePublisher publishes to every delegate and joins their errors
type CompositePublisher struct {
	delegates []shared.EventPublisher
}

// NewCompositePublisher skips nil delegates
func NewCompositePublisher(delegates ...shared.EventPublisher) *CompositePublisher {
	c := &CompositePublisher{}
	for _, d := range delegates {
		if d != nil {
			c.delegates = append(c.delegates, d)
		}
	}
	return c
}

// Publish tries every delegate even after one fails
func (c *CompositePublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	var errs []error
	for _, d := range c.delegates {
		if err := d.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ shared.EventPublisher = LogPublisher{}
	_ shared.EventHandler   = LogPublisher{}
	_ shared.EventPublisher = (*CompositePublisher)(nil)
)
