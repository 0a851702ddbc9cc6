package receiving

// ResolveOrderStatus maps per-line fulfillment to the order status.
//
// Every non-degenerate line fully accepted gives FullyReceived. No acceptance
// at all leaves the current status alone. Anything in between is
// PartiallyReceived. Zero-quantity lines count as satisfied and are left out
// of both checks.
func ResolveOrderStatus(order *Order, ledger *Ledger) OrderStatus {
	allSatisfied, noneAccepted := true, true
	for _, line := range order.Lines {
		if line.IsDegenerate() {
			continue
		}
		accepted := ledger.ConsumedFor(line.ID).Accepted
		if accepted.LessThan(line.OrderedQuantity) {
			allSatisfied = false
		}
		if accepted.IsPositive() {
			noneAccepted = false
		}
	}

	switch {
	case allSatisfied:
		return OrderStatusFullyReceived
	case noneAccepted:
		return order.Status
	default:
		return OrderStatusPartiallyReceived
	}
}
