package receiving

import (
	"context"

	"github.com/erp/reconciliation/internal/domain/receiving"
	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/erp/reconciliation/internal/infrastructure/telemetry"
)

// ErrInvalidDateRange is returned when date_from is after date_to
var ErrInvalidDateRange = shared.NewDomainError("INVALID_DATE_RANGE", "date_from must not be after date_to")

// MetricsAggregator computes read-only reconciliation rollups. It never
// takes part in write-path locking; slightly stale reads are acceptable.
type MetricsAggregator struct {
	reader receiving.MetricsReader
}

// NewMetricsAggregator creates a new MetricsAggregator
func NewMetricsAggregator(reader receiving.MetricsReader) *MetricsAggregator {
	return &MetricsAggregator{reader: reader}
}

// ComputeMetrics aggregates receptions created inside the filter window
func (a *MetricsAggregator) ComputeMetrics(ctx context.Context, filter MetricsFilter) (*MetricsResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "ComputeMetrics")
	defer span.End()

	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		return nil, ErrInvalidDateRange
	}

	window := receiving.MetricsWindow{From: filter.DateFrom, To: filter.DateTo}
	facts, err := a.reader.FindFacts(ctx, window)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetOK(span)
	return ToMetricsResponse(filter, receiving.ComputeMetrics(window, facts)), nil
}
