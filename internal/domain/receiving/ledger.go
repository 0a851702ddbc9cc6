package receiving

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineConsumption is the cumulative quantity recorded against one order line
type LineConsumption struct {
	Received decimal.Decimal `json:"received"`
	Accepted decimal.Decimal `json:"accepted"`
	Rejected decimal.Decimal `json:"rejected"`
}

func (c LineConsumption) add(l ReceptionLine) LineConsumption {
	return LineConsumption{
		Received: c.Received.Add(l.ReceivedQuantity),
		Accepted: c.Accepted.Add(l.AcceptedQuantity),
		Rejected: c.Rejected.Add(l.RejectedQuantity),
	}
}

// LineBalance is a read view of one order line against its reception history
type LineBalance struct {
	OrderLineID uuid.UUID       `json:"order_line_id"`
	LineNo      int             `json:"line_no"`
	Ordered     decimal.Decimal `json:"ordered"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineConsumption
	Remaining decimal.Decimal `json:"remaining"`
}

// Ledger is the derived view of what an order's reception history has
// consumed. It is immutable and built from a snapshot; it never touches storage.
type Ledger struct {
	order     *Order
	consumed  map[uuid.UUID]LineConsumption
	lineCount int
}

// NewLedger sums every reception line of the history by order line. Lines
// referencing other orders' lines are ignored.
func NewLedger(order *Order, history []*Reception) *Ledger {
	l := &Ledger{
		order:    order,
		consumed: make(map[uuid.UUID]LineConsumption, len(order.Lines)),
	}
	for _, r := range history {
		if r == nil || r.OrderID != order.ID {
			continue
		}
		l.record(r)
	}
	return l
}

func (l *Ledger) record(r *Reception) {
	for _, line := range r.Lines {
		if _, ok := l.order.Line(line.OrderLineID); !ok {
			continue
		}
		l.consumed[line.OrderLineID] = l.consumed[line.OrderLineID].add(line)
		l.lineCount++
	}
}

// With returns a new ledger that also includes the given reception
func (l *Ledger) With(r *Reception) *Ledger {
	next := &Ledger{
		order:     l.order,
		consumed:  make(map[uuid.UUID]LineConsumption, len(l.consumed)),
		lineCount: l.lineCount,
	}
	for k, v := range l.consumed {
		next.consumed[k] = v
	}
	if r != nil && r.OrderID == l.order.ID {
		next.record(r)
	}
	return next
}

// ConsumedFor returns received/accepted/rejected totals for an order line
func (l *Ledger) ConsumedFor(orderLineID uuid.UUID) LineConsumption {
	c, ok := l.consumed[orderLineID]
	if !ok {
		return LineConsumption{Received: decimal.Zero, Accepted: decimal.Zero, Rejected: decimal.Zero}
	}
	return c
}

// Remaining is ordered minus accepted so far. Rejected quantity does not
// consume the commitment, so it may be delivered again.
func (l *Ledger) Remaining(orderLineID uuid.UUID) (decimal.Decimal, bool) {
	line, ok := l.order.Line(orderLineID)
	if !ok {
		return decimal.Zero, false
	}
	return line.OrderedQuantity.Sub(l.ConsumedFor(orderLineID).Accepted), true
}

// LineCount is the number of reception lines recorded so far for the order
func (l *Ledger) LineCount() int {
	return l.lineCount
}

// Balances lists every order line with its consumption, in order line order
func (l *Ledger) Balances() []LineBalance {
	out := make([]LineBalance, 0, len(l.order.Lines))
	for _, ol := range l.order.Lines {
		remaining, _ := l.Remaining(ol.ID)
		out = append(out, LineBalance{
			OrderLineID:     ol.ID,
			LineNo:          ol.LineNo,
			Ordered:         ol.OrderedQuantity,
			UnitPrice:       ol.UnitPrice,
			LineConsumption: l.ConsumedFor(ol.ID),
			Remaining:       remaining,
		})
	}
	return out
}
