package receiving

import (
	"time"

	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AggregateTypeReception is the aggregate type for receptions
const AggregateTypeReception = "Reception"

// Event types
const (
	EventTypeReceptionCreated  = "ReceptionCreated"
	EventTypeReceptionApproved = "ReceptionInspectionResolved"
)

// ReceptionCreatedEvent is emitted after a reception is committed
type ReceptionCreatedEvent struct {
	shared.BaseDomainEvent
	ReceptionID      uuid.UUID       `json:"reception_id"`
	SequenceNumber   string          `json:"sequence_number"`
	OrderID          uuid.UUID       `json:"order_id"`
	ReceptionType    ReceptionType   `json:"reception_type"`
	LineCount        int             `json:"line_count"`
	AcceptedValue    decimal.Decimal `json:"accepted_value"`
	AcceptedQuantity decimal.Decimal `json:"accepted_quantity"`
	RejectedQuantity decimal.Decimal `json:"rejected_quantity"`
	OrderStatus      OrderStatus     `json:"order_status"`
}

// NewReceptionCreatedEvent creates the event for a freshly submitted reception
func NewReceptionCreatedEvent(r *Reception, order *Order) *ReceptionCreatedEvent {
	totals := r.Totals()
	return &ReceptionCreatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeReceptionCreated, AggregateTypeReception, r.ID),
		ReceptionID:      r.ID,
		SequenceNumber:   r.SequenceNumber,
		OrderID:          r.OrderID,
		ReceptionType:    r.Type,
		LineCount:        len(r.Lines),
		AcceptedValue:    r.AcceptedValue(order),
		AcceptedQuantity: totals.Accepted,
		RejectedQuantity: totals.Rejected,
		OrderStatus:      order.Status,
	}
}

// PartitionKey keeps all events of one order in sequence
func (e *ReceptionCreatedEvent) PartitionKey() string { return e.OrderID.String() }

// ReceptionApprovedEvent is emitted the first time a reception becomes Approved
type ReceptionApprovedEvent struct {
	shared.BaseDomainEvent
	ReceptionID      uuid.UUID       `json:"reception_id"`
	SequenceNumber   string          `json:"sequence_number"`
	OrderID          uuid.UUID       `json:"order_id"`
	AcceptedQuantity decimal.Decimal `json:"accepted_quantity"`
	RejectedQuantity decimal.Decimal `json:"rejected_quantity"`
	AcceptedValue    decimal.Decimal `json:"accepted_value"`
	InspectedBy      string          `json:"inspected_by"`
	CompletedAt      time.Time       `json:"completed_at"`
	OrderStatus      OrderStatus     `json:"order_status"`
}

// NewReceptionApprovedEvent creates the event for a fully approved reception
func NewReceptionApprovedEvent(r *Reception, order *Order, actorID string) *ReceptionApprovedEvent {
	totals := r.Totals()
	e := &ReceptionApprovedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeReceptionApproved, AggregateTypeReception, r.ID),
		ReceptionID:      r.ID,
		SequenceNumber:   r.SequenceNumber,
		OrderID:          r.OrderID,
		AcceptedQuantity: totals.Accepted,
		RejectedQuantity: totals.Rejected,
		AcceptedValue:    r.AcceptedValue(order),
		InspectedBy:      actorID,
		OrderStatus:      order.Status,
	}
	if r.InspectionCompletedAt != nil {
		e.CompletedAt = *r.InspectionCompletedAt
	}
	return e
}

// PartitionKey keeps all events of one order in sequence
func (e *ReceptionApprovedEvent) PartitionKey() string { return e.OrderID.String() }
