package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys.
var (
	AttrOperation     = attribute.Key("operation")
	AttrReceptionType = attribute.Key("reception_type")
	AttrErrorKind     = attribute.Key("error_kind")
	AttrErrorCode     = attribute.Key("error_code")
	AttrEventType     = attribute.Key("event_type")
)

// ReconciliationMetrics holds the instruments recorded by the reconciliation
// services. A nil *ReconciliationMetrics records nothing.
type ReconciliationMetrics struct {
	submitted      *Counter
	submitDuration *Histogram
	rejected       *Counter
	retries        *Counter
	eventFailures  *Counter
}

// NewReconciliationMetrics registers the reconciliation instruments on meter.
func NewReconciliationMetrics(meter metric.Meter) (*ReconciliationMetrics, error) {
	submitted, err := NewCounter(meter, "reconciliation.receptions.submitted",
		"Receptions accepted and persisted", "{reception}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "reconciliation.receptions.submit_duration",
		Description: "Time to validate and persist a reception, retries included",
		Unit:        "s",
		Boundaries:  []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})
	if err != nil {
		return nil, err
	}
	rejected, err := NewCounter(meter, "reconciliation.operations.rejected",
		"Operations that failed with a domain error", "{operation}")
	if err != nil {
		return nil, err
	}
	retries, err := NewCounter(meter, "reconciliation.transactions.retried",
		"Transactions retried after a concurrency conflict", "{retry}")
	if err != nil {
		return nil, err
	}
	eventFailures, err := NewCounter(meter, "reconciliation.events.publish_failed",
		"Domain events that could not be published after commit", "{event}")
	if err != nil {
		return nil, err
	}
	return &ReconciliationMetrics{
		submitted:      submitted,
		submitDuration: duration,
		rejected:       rejected,
		retries:        retries,
		eventFailures:  eventFailures,
	}, nil
}

// RecordSubmitted records a persisted reception and its end-to-end duration.
func (m *ReconciliationMetrics) RecordSubmitted(ctx context.Context, receptionType string, d time.Duration) {
	if m == nil {
		return
	}
	m.submitted.Inc(ctx, AttrReceptionType.String(receptionType))
	m.submitDuration.RecordDuration(ctx, d, AttrReceptionType.String(receptionType))
}

// RecordRejected records an operation that failed with the given error kind and code.
func (m *ReconciliationMetrics) RecordRejected(ctx context.Context, operation, kind, code string) {
	if m == nil {
		return
	}
	m.rejected.Inc(ctx,
		AttrOperation.String(operation),
		AttrErrorKind.String(kind),
		AttrErrorCode.String(code),
	)
}

// RecordRetry records a retried transaction.
func (m *ReconciliationMetrics) RecordRetry(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.retries.Inc(ctx, AttrOperation.String(operation))
}

// RecordEventFailure records a post-commit publish failure.
func (m *ReconciliationMetrics) RecordEventFailure(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.eventFailures.Inc(ctx, AttrEventType.String(eventType))
}
