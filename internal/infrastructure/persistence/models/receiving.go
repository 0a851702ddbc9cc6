package models

import (
	"fmt"
	"time"

	"github.com/erp/reconciliation/internal/domain/receiving"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order aggregate.
type OrderModel struct {
	AggregateModel
	OrderNumber string           `gorm:"type:varchar(50);not null;uniqueIndex"`
	SupplierID  string           `gorm:"type:varchar(100);not null;index"`
	Status      string           `gorm:"type:varchar(30);not null"`
	Lines       []OrderLineModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "purchase_orders"
}

// OrderLineModel is the persistence model for an order line.
type OrderLineModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID         uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo          int             `gorm:"not null"`
	ProductCode     string          `gorm:"type:varchar(50);not null"`
	OrderedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (OrderLineModel) TableName() string {
	return "purchase_order_lines"
}

// ToDomain converts the model to a domain Order. An unknown stored status is
// reported rather than coerced.
func (m *OrderModel) ToDomain() (*receiving.Order, error) {
	status, err := receiving.ParseOrderStatus(m.Status)
	if err != nil {
		return nil, fmt.Errorf("order %s has corrupt status: %v", m.ID, err)
	}
	order := &receiving.Order{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		OrderNumber:       m.OrderNumber,
		SupplierID:        m.SupplierID,
		Status:            status,
		Lines:             make([]receiving.OrderLine, len(m.Lines)),
	}
	for i, l := range m.Lines {
		order.Lines[i] = receiving.OrderLine{
			ID:              l.ID,
			LineNo:          l.LineNo,
			ProductCode:     l.ProductCode,
			OrderedQuantity: l.OrderedQuantity,
			UnitPrice:       l.UnitPrice,
		}
	}
	return order, nil
}

// OrderModelFromDomain converts a domain Order to its persistence model.
func OrderModelFromDomain(o *receiving.Order) *OrderModel {
	m := &OrderModel{
		OrderNumber: o.OrderNumber,
		SupplierID:  o.SupplierID,
		Status:      o.Status.String(),
		Lines:       make([]OrderLineModel, len(o.Lines)),
	}
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	for i, l := range o.Lines {
		m.Lines[i] = OrderLineModel{
			ID:              l.ID,
			OrderID:         o.ID,
			LineNo:          l.LineNo,
			ProductCode:     l.ProductCode,
			OrderedQuantity: l.OrderedQuantity,
			UnitPrice:       l.UnitPrice,
		}
	}
	return m
}

// ReceptionModel is the persistence model for the Reception aggregate.
type ReceptionModel struct {
	AggregateModel
	SequenceNumber        string               `gorm:"type:varchar(40);not null;uniqueIndex"`
	OrderID               uuid.UUID            `gorm:"type:uuid;not null;index"`
	ReceptionType         string               `gorm:"type:varchar(20);not null"`
	Status                string               `gorm:"type:varchar(30);not null;index"`
	CreatedByActorID      string               `gorm:"type:varchar(100);not null"`
	InspectionActorID     string               `gorm:"type:varchar(100)"`
	InspectionStartedAt   *time.Time
	InspectionCompletedAt *time.Time
	Notes                 string               `gorm:"type:text"`
	Documents             []string             `gorm:"type:text;serializer:json"`
	Lines                 []ReceptionLineModel `gorm:"foreignKey:ReceptionID;references:ID"`
}

// TableName returns the table name for GORM
func (ReceptionModel) TableName() string {
	return "receptions"
}

// ReceptionLineModel is the persistence model for a reception line.
type ReceptionLineModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key"`
	ReceptionID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	OrderLineID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineIndex        int             `gorm:"not null"`
	ReceivedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AcceptedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	RejectedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	InspectionStatus string          `gorm:"type:varchar(20);not null"`
	Notes            string          `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ReceptionLineModel) TableName() string {
	return "reception_lines"
}

// ToDomain converts the model to a domain Reception.
func (m *ReceptionModel) ToDomain() (*receiving.Reception, error) {
	receptionType, err := receiving.ParseReceptionType(m.ReceptionType)
	if err != nil {
		return nil, fmt.Errorf("reception %s has corrupt enum value: %v", m.ID, err)
	}
	status, err := receiving.ParseReceptionStatus(m.Status)
	if err != nil {
		return nil, fmt.Errorf("reception %s has corrupt enum value: %v", m.ID, err)
	}

	r := &receiving.Reception{
		BaseAggregateRoot:     m.ToDomainAggregateRoot(),
		SequenceNumber:        m.SequenceNumber,
		OrderID:               m.OrderID,
		Type:                  receptionType,
		Status:                status,
		CreatedByActorID:      m.CreatedByActorID,
		InspectionActorID:     m.InspectionActorID,
		InspectionStartedAt:   utcPtr(m.InspectionStartedAt),
		InspectionCompletedAt: utcPtr(m.InspectionCompletedAt),
		Notes:                 m.Notes,
		Documents:             append([]string(nil), m.Documents...),
		Lines:                 make([]receiving.ReceptionLine, len(m.Lines)),
	}
	for i, l := range m.Lines {
		inspection, err := receiving.ParseInspectionStatus(l.InspectionStatus)
		if err != nil {
			return nil, fmt.Errorf("reception line %s has corrupt inspection status: %v", l.ID, err)
		}
		r.Lines[i] = receiving.ReceptionLine{
			ID:               l.ID,
			ReceptionID:      m.ID,
			OrderLineID:      l.OrderLineID,
			LineIndex:        l.LineIndex,
			ReceivedQuantity: l.ReceivedQuantity,
			AcceptedQuantity: l.AcceptedQuantity,
			RejectedQuantity: l.RejectedQuantity,
			InspectionStatus: inspection,
			Notes:            l.Notes,
		}
	}
	return r, nil
}

// ReceptionModelFromDomain converts a domain Reception to its persistence model.
func ReceptionModelFromDomain(r *receiving.Reception) *ReceptionModel {
	m := &ReceptionModel{
		SequenceNumber:        r.SequenceNumber,
		OrderID:               r.OrderID,
		ReceptionType:         r.Type.String(),
		Status:                r.Status.String(),
		CreatedByActorID:      r.CreatedByActorID,
		InspectionActorID:     r.InspectionActorID,
		InspectionStartedAt:   r.InspectionStartedAt,
		InspectionCompletedAt: r.InspectionCompletedAt,
		Notes:                 r.Notes,
		Documents:             append([]string{}, r.Documents...),
		Lines:                 make([]ReceptionLineModel, len(r.Lines)),
	}
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	for i, l := range r.Lines {
		m.Lines[i] = ReceptionLineModel{
			ID:               l.ID,
			ReceptionID:      r.ID,
			OrderLineID:      l.OrderLineID,
			LineIndex:        l.LineIndex,
			ReceivedQuantity: l.ReceivedQuantity,
			AcceptedQuantity: l.AcceptedQuantity,
			RejectedQuantity: l.RejectedQuantity,
			InspectionStatus: l.InspectionStatus.String(),
			Notes:            l.Notes,
		}
	}
	return m
}

// SequenceCounterModel is a named monotonically increasing counter.
type SequenceCounterModel struct {
	Name  string `gorm:"type:varchar(50);primaryKey"`
	Value int64  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SequenceCounterModel) TableName() string {
	return "sequence_counters"
}

// All lists every model, in dependency order, for schema setup in tests and local runs.
func All() []any {
	return []any{
		&OrderModel{},
		&OrderLineModel{},
		&ReceptionModel{},
		&ReceptionLineModel{},
		&SequenceCounterModel{},
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
