package receiving

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MetricsWindow bounds receptions by creation time. Nil bounds are open.
type MetricsWindow struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside the window (inclusive)
func (w MetricsWindow) Contains(t time.Time) bool {
	if w.From != nil && t.Before(*w.From) {
		return false
	}
	if w.To != nil && t.After(*w.To) {
		return false
	}
	return true
}

// ReceptionFact is a reception together with the unit prices of the order
// lines it references, as needed for value rollups
type ReceptionFact struct {
	Reception  *Reception
	UnitPrices map[uuid.UUID]decimal.Decimal
}

// Metrics are read-only rollups over receptions in a window
type Metrics struct {
	TotalReceptions          int64           `json:"total_receptions"`
	OpenReceptions           int64           `json:"open_receptions"`
	ApprovalRate             decimal.Decimal `json:"approval_rate"`
	MeanInspectionLatency    time.Duration   `json:"mean_inspection_latency"`
	TotalReceivedQuantity    decimal.Decimal `json:"total_received_quantity"`
	TotalAcceptedQuantity    decimal.Decimal `json:"total_accepted_quantity"`
	TotalRejectedQuantity    decimal.Decimal `json:"total_rejected_quantity"`
	TotalAcceptedValue       decimal.Decimal `json:"total_accepted_value"`
	CompletedInspectionCount int64           `json:"completed_inspection_count"`
}

// ComputeMetrics aggregates facts. Facts outside the window are skipped so
// callers may pass a superset. Approval rate is accepted over received, zero
// when nothing was received; mean latency is zero without completed inspections.
func ComputeMetrics(window MetricsWindow, facts []ReceptionFact) Metrics {
	m := Metrics{
		ApprovalRate:          decimal.Zero,
		TotalReceivedQuantity: decimal.Zero,
		TotalAcceptedQuantity: decimal.Zero,
		TotalRejectedQuantity: decimal.Zero,
		TotalAcceptedValue:    decimal.Zero,
	}
	var latencyTotal time.Duration

	for _, f := range facts {
		r := f.Reception
		if r == nil || !window.Contains(r.CreatedAt) {
			continue
		}
		m.TotalReceptions++
		if r.Status.IsOpen() {
			m.OpenReceptions++
		}
		if r.InspectionCompletedAt != nil {
			m.CompletedInspectionCount++
			latencyTotal += r.InspectionCompletedAt.Sub(r.CreatedAt)
		}
		for _, l := range r.Lines {
			m.TotalReceivedQuantity = m.TotalReceivedQuantity.Add(l.ReceivedQuantity)
			m.TotalAcceptedQuantity = m.TotalAcceptedQuantity.Add(l.AcceptedQuantity)
			m.TotalRejectedQuantity = m.TotalRejectedQuantity.Add(l.RejectedQuantity)
			m.TotalAcceptedValue = m.TotalAcceptedValue.Add(l.AcceptedQuantity.Mul(f.UnitPrices[l.OrderLineID]))
		}
	}

	if m.TotalReceivedQuantity.IsPositive() {
		m.ApprovalRate = m.TotalAcceptedQuantity.DivRound(m.TotalReceivedQuantity, 4)
	}
	if m.CompletedInspectionCount > 0 {
		m.MeanInspectionLatency = latencyTotal / time.Duration(m.CompletedInspectionCount)
	}
	return m
}
