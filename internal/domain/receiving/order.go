package receiving

import (
	"github.com/erp/reconciliation/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment status of a purchase order
type OrderStatus string

const (
	OrderStatusSent              OrderStatus = "SENT"
	OrderStatusConfirmed         OrderStatus = "CONFIRMED"
	OrderStatusInTransit         OrderStatus = "IN_TRANSIT"
	OrderStatusPartiallyReceived OrderStatus = "PARTIALLY_RECEIVED"
	OrderStatusFullyReceived     OrderStatus = "FULLY_RECEIVED"
	OrderStatusCancelled         OrderStatus = "CANCELLED"
	OrderStatusClosed            OrderStatus = "CLOSED"
)

var orderStatuses = []OrderStatus{
	OrderStatusSent,
	OrderStatusConfirmed,
	OrderStatusInTransit,
	OrderStatusPartiallyReceived,
	OrderStatusFullyReceived,
	OrderStatusCancelled,
	OrderStatusClosed,
}

// ParseOrderStatus converts a stored or submitted value, rejecting anything unknown
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(s)
	if !status.IsValid() {
		return "", newInvalidEnum("order_status", s)
	}
	return status, nil
}

// IsValid checks if the status is a known value
func (s OrderStatus) IsValid() bool {
	for _, v := range orderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// String returns the string representation
func (s OrderStatus) String() string {
	return string(s)
}

// CanReceive returns true if goods can be received against the order
func (s OrderStatus) CanReceive() bool {
	switch s {
	case OrderStatusSent, OrderStatusConfirmed, OrderStatusInTransit, OrderStatusPartiallyReceived:
		return true
	}
	return false
}

// IsFulfillmentTracked reports whether the reconciliation engine owns this status.
// Cancelled and closed orders are never overwritten.
func (s OrderStatus) IsFulfillmentTracked() bool {
	return s.CanReceive() || s == OrderStatusFullyReceived
}

// OrderLine is one committed item of an order. Quantity and price are fixed
// once the line is referenced by a reception.
type OrderLine struct {
	ID              uuid.UUID
	LineNo          int
	ProductCode     string
	OrderedQuantity decimal.Decimal
	UnitPrice       decimal.Decimal
}

// NewOrderLine creates a validated order line
func NewOrderLine(lineNo int, productCode string, ordered, unitPrice decimal.Decimal) (OrderLine, error) {
	if !ordered.IsPositive() {
		return OrderLine{}, shared.NewDomainError(CodeInvalidQuantity, "Ordered quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return OrderLine{}, shared.NewDomainError(CodeInvalidQuantity, "Unit price cannot be negative")
	}
	return OrderLine{
		ID:              uuid.New(),
		LineNo:          lineNo,
		ProductCode:     productCode,
		OrderedQuantity: ordered,
		UnitPrice:       unitPrice,
	}, nil
}

// IsDegenerate reports a zero-quantity line, which counts as always satisfied
func (l OrderLine) IsDegenerate() bool {
	return !l.OrderedQuantity.IsPositive()
}

// Order is a purchase commitment received against by receptions.
// It is created upstream; this engine only reads its lines and overwrites Status.
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber string
	SupplierID  string
	Status      OrderStatus
	Lines       []OrderLine
}

// NewOrder creates a new order in SENT status
func NewOrder(orderNumber, supplierID string, lines []OrderLine) (*Order, error) {
	if len(lines) == 0 {
		return nil, shared.NewDomainError("EMPTY_ORDER", "Order must have at least one line")
	}
	return &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNumber:       orderNumber,
		SupplierID:        supplierID,
		Status:            OrderStatusSent,
		Lines:             lines,
	}, nil
}

// Line finds an order line by ID
func (o *Order) Line(id uuid.UUID) (OrderLine, bool) {
	for _, l := range o.Lines {
		if l.ID == id {
			return l, true
		}
	}
	return OrderLine{}, false
}

// UnitPrice returns the unit price of a line, zero for unknown lines
func (o *Order) UnitPrice(lineID uuid.UUID) decimal.Decimal {
	l, _ := o.Line(lineID)
	return l.UnitPrice
}

// EnsureReceivable fails with OrderNotReceivable when receptions are not allowed
func (o *Order) EnsureReceivable() error {
	if !o.Status.CanReceive() {
		return newOrderNotReceivable(o.ID, o.Status)
	}
	return nil
}

// ApplyStatus sets a new fulfillment status and reports whether it changed.
// Statuses outside fulfillment tracking are left untouched.
func (o *Order) ApplyStatus(status OrderStatus) bool {
	if !o.Status.IsFulfillmentTracked() || o.Status == status {
		return false
	}
	o.Status = status
	o.Touch()
	o.IncrementVersion()
	return true
}
