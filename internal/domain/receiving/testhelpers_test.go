package receiving

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestOrder(t *testing.T, quantities ...string) *Order {
	t.Helper()
	lines := make([]OrderLine, 0, len(quantities))
	for i, q := range quantities {
		line, err := NewOrderLine(i+1, "SKU-"+q, dec(q), dec("2.50"))
		require.NoError(t, err)
		lines = append(lines, line)
	}
	order, err := NewOrder("PO-2026-00001", "supplier-1", lines)
	require.NoError(t, err)
	return order
}

func proposed(lineID uuid.UUID, received, accepted, rejected string) ProposedLine {
	return ProposedLine{
		OrderLineID:      lineID,
		ReceivedQuantity: dec(received),
		AcceptedQuantity: dec(accepted),
		RejectedQuantity: dec(rejected),
	}
}

// receive validates and builds a reception against the given history
func receive(t *testing.T, order *Order, history []*Reception, lines ...ProposedLine) *Reception {
	t.Helper()
	ledger := NewLedger(order, history)
	validated, err := ValidateReception(order, ledger, lines)
	require.NoError(t, err)
	r, err := NewReception(order.ID, ReceptionTypePartial, "RCP-000001", "actor-1", validated, nil, "")
	require.NoError(t, err)
	return r
}

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
