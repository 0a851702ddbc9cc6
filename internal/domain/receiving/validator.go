package receiving

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProposedLine is one line of a reception as submitted by the caller
type ProposedLine struct {
	OrderLineID      uuid.UUID
	ReceivedQuantity decimal.Decimal
	AcceptedQuantity decimal.Decimal
	RejectedQuantity decimal.Decimal
	Notes            string
}

// ValidatedLine is a proposed line that passed validation, with its
// per-order persistence index
type ValidatedLine struct {
	ProposedLine
	LineIndex int
}

// ValidateReception checks a whole submission against the order and the
// ledger of already persisted receptions. It is all-or-nothing: the first
// failing line aborts the submission.
//
// Remaining balances come from the ledger only, so two lines of the same
// submission never offset each other; a repeated order line is rejected.
func ValidateReception(order *Order, ledger *Ledger, proposed []ProposedLine) ([]ValidatedLine, error) {
	if len(proposed) == 0 {
		return nil, detailed(ErrEmptySubmission, "reception must contain at least one line").
			WithDetail("order_id", order.ID.String())
	}

	seen := make(map[uuid.UUID]int, len(proposed))
	out := make([]ValidatedLine, 0, len(proposed))
	next := ledger.LineCount() + 1

	for i, p := range proposed {
		if _, ok := order.Line(p.OrderLineID); !ok {
			return nil, newLineError(ErrUnknownOrderLine, i, p.OrderLineID,
				fmt.Sprintf("line %d: order line %s does not belong to order %s", i, p.OrderLineID, order.ID)).
				WithDetail("order_id", order.ID.String())
		}
		if first, dup := seen[p.OrderLineID]; dup {
			return nil, newLineError(ErrDuplicateLine, i, p.OrderLineID,
				fmt.Sprintf("line %d: order line %s already submitted at line %d", i, p.OrderLineID, first)).
				WithDetail("first_line_index", first)
		}
		seen[p.OrderLineID] = i

		if p.ReceivedQuantity.IsNegative() || p.AcceptedQuantity.IsNegative() || p.RejectedQuantity.IsNegative() {
			return nil, newLineError(ErrInvalidQuantity, i, p.OrderLineID,
				fmt.Sprintf("line %d: quantities must not be negative", i))
		}
		if !p.AcceptedQuantity.Add(p.RejectedQuantity).Equal(p.ReceivedQuantity) {
			return nil, newSplitMismatch(i, p.OrderLineID, p.ReceivedQuantity, p.AcceptedQuantity, p.RejectedQuantity)
		}

		remaining, _ := ledger.Remaining(p.OrderLineID)
		if p.ReceivedQuantity.GreaterThan(remaining) {
			return nil, newOverReceipt(i, p.OrderLineID, p.ReceivedQuantity, remaining)
		}

		out = append(out, ValidatedLine{ProposedLine: p, LineIndex: next})
		next++
	}
	return out, nil
}
