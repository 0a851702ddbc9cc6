package receiving

import (
	"time"

	"github.com/erp/reconciliation/internal/domain/receiving"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceptionLineInput is one submitted line
type ReceptionLineInput struct {
	OrderLineID      uuid.UUID
	ReceivedQuantity decimal.Decimal
	AcceptedQuantity decimal.Decimal
	RejectedQuantity decimal.Decimal
	Notes            string
}

// SubmitReceptionCommand creates a reception against an order
type SubmitReceptionCommand struct {
	OrderID       uuid.UUID
	ReceptionType string
	Lines         []ReceptionLineInput
	ActorID       string
	Documents     []string
	Notes         string
}

// InspectLineCommand records the verdict for one reception line
type InspectLineCommand struct {
	ReceptionID      uuid.UUID
	LineID           uuid.UUID
	InspectionStatus string
	Notes            string
	ActorID          string
}

// MetricsFilter bounds the metrics window by reception creation time
type MetricsFilter struct {
	DateFrom *time.Time
	DateTo   *time.Time
}

// PresignDocumentCommand asks for an upload URL for a reception document
type PresignDocumentCommand struct {
	ReceptionID *uuid.UUID
	FileName    string
	ContentType string
}

// ReceptionLineResponse is the API view of a reception line
type ReceptionLineResponse struct {
	ID               uuid.UUID       `json:"id"`
	OrderLineID      uuid.UUID       `json:"order_line_id"`
	LineIndex        int             `json:"line_index"`
	ReceivedQuantity decimal.Decimal `json:"received_quantity"`
	AcceptedQuantity decimal.Decimal `json:"accepted_quantity"`
	RejectedQuantity decimal.Decimal `json:"rejected_quantity"`
	InspectionStatus string          `json:"inspection_status"`
	Notes            string          `json:"notes,omitempty"`
}

// ReceptionResponse is the API view of a reception
type ReceptionResponse struct {
	ID                    uuid.UUID               `json:"id"`
	SequenceNumber        string                  `json:"sequence_number"`
	OrderID               uuid.UUID               `json:"order_id"`
	ReceptionType         string                  `json:"reception_type"`
	Status                string                  `json:"status"`
	OrderStatus           string                  `json:"order_status,omitempty"`
	CreatedByActorID      string                  `json:"created_by_actor_id"`
	InspectionActorID     string                  `json:"inspection_actor_id,omitempty"`
	CreatedAt             time.Time               `json:"created_at"`
	InspectionStartedAt   *time.Time              `json:"inspection_started_at,omitempty"`
	InspectionCompletedAt *time.Time              `json:"inspection_completed_at,omitempty"`
	Notes                 string                  `json:"notes,omitempty"`
	Documents             []string                `json:"documents"`
	Lines                 []ReceptionLineResponse `json:"lines"`
	Version               int                     `json:"version"`
}

// ToReceptionResponse converts a domain reception. orderStatus may be empty.
func ToReceptionResponse(r *receiving.Reception, orderStatus receiving.OrderStatus) *ReceptionResponse {
	resp := &ReceptionResponse{
		ID:                    r.ID,
		SequenceNumber:        r.SequenceNumber,
		OrderID:               r.OrderID,
		ReceptionType:         string(r.Type),
		Status:                string(r.Status),
		OrderStatus:           string(orderStatus),
		CreatedByActorID:      r.CreatedByActorID,
		InspectionActorID:     r.InspectionActorID,
		CreatedAt:             r.CreatedAt,
		InspectionStartedAt:   r.InspectionStartedAt,
		InspectionCompletedAt: r.InspectionCompletedAt,
		Notes:                 r.Notes,
		Documents:             r.Documents,
		Lines:                 make([]ReceptionLineResponse, 0, len(r.Lines)),
		Version:               r.Version,
	}
	if resp.Documents == nil {
		resp.Documents = []string{}
	}
	for _, l := range r.Lines {
		resp.Lines = append(resp.Lines, ReceptionLineResponse{
			ID:               l.ID,
			OrderLineID:      l.OrderLineID,
			LineIndex:        l.LineIndex,
			ReceivedQuantity: l.ReceivedQuantity,
			AcceptedQuantity: l.AcceptedQuantity,
			RejectedQuantity: l.RejectedQuantity,
			InspectionStatus: string(l.InspectionStatus),
			Notes:            l.Notes,
		})
	}
	return resp
}

// OrderLedgerResponse shows every order line against its reception history
type OrderLedgerResponse struct {
	OrderID     uuid.UUID               `json:"order_id"`
	OrderNumber string                  `json:"order_number"`
	Status      string                  `json:"status"`
	Lines       []receiving.LineBalance `json:"lines"`
}

// MetricsResponse is the API view of reconciliation metrics
type MetricsResponse struct {
	DateFrom                     *time.Time      `json:"date_from,omitempty"`
	DateTo                       *time.Time      `json:"date_to,omitempty"`
	TotalReceptions              int64           `json:"total_receptions"`
	OpenReceptions               int64           `json:"open_receptions"`
	ApprovalRate                 decimal.Decimal `json:"approval_rate"`
	MeanInspectionLatencySeconds float64         `json:"mean_inspection_latency_seconds"`
	TotalReceivedQuantity        decimal.Decimal `json:"total_received_quantity"`
	TotalAcceptedQuantity        decimal.Decimal `json:"total_accepted_quantity"`
	TotalRejectedQuantity        decimal.Decimal `json:"total_rejected_quantity"`
	TotalAcceptedValue           decimal.Decimal `json:"total_accepted_value"`
}

// ToMetricsResponse converts domain metrics
func ToMetricsResponse(filter MetricsFilter, m receiving.Metrics) *MetricsResponse {
	return &MetricsResponse{
		DateFrom:                     filter.DateFrom,
		DateTo:                       filter.DateTo,
		TotalReceptions:              m.TotalReceptions,
		OpenReceptions:               m.OpenReceptions,
		ApprovalRate:                 m.ApprovalRate,
		MeanInspectionLatencySeconds: m.MeanInspectionLatency.Seconds(),
		TotalReceivedQuantity:        m.TotalReceivedQuantity,
		TotalAcceptedQuantity:        m.TotalAcceptedQuantity,
		TotalRejectedQuantity:        m.TotalRejectedQuantity,
		TotalAcceptedValue:           m.TotalAcceptedValue,
	}
}

// PresignedDocument is an upload target plus the reference to store on the reception
type PresignedDocument struct {
	UploadURL   string    `json:"upload_url"`
	DocumentRef string    `json:"document_ref"`
	ExpiresAt   time.Time `json:"expires_at"`
}
