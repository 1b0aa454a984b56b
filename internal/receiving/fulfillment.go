package receiving

// Calculate folds an item's receipts into its fulfillment. It has no side
// effects and returns the same value for the same inputs.
func Calculate(itemID int64, ordered int, receipts []Receipt) ItemFulfillment {
	out := ItemFulfillment{ItemID: itemID, Ordered: ordered}
	for i := range receipts {
		out.Received += receipts[i].NetQuantity()
		at := receipts[i].CreatedAt
		if out.LastReceivedAt == nil || at.After(*out.LastReceivedAt) {
			out.LastReceivedAt = &at
		}
	}
	out.Pending = max(0, ordered-out.Received)
	out.Status = classify(out.Received, ordered)
	return out
}

func classify(net, ordered int) Status {
	switch {
	case net == 0:
		return StatusPending
	case net < ordered:
		return StatusPartial
	case net == ordered:
		return StatusComplete
	default:
		return StatusOverDelivered
	}
}
