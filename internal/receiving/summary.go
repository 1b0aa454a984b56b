package receiving

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Summarize rolls item fulfillment rows into a request summary. Over-delivered
// items are counted on their own and their full net quantity counts toward
// the percentage.
func Summarize(items []ItemFulfillment) Summary {
	s := Summary{TotalItems: len(items)}
	var ordered, received int64
	for _, item := range items {
		ordered += int64(item.Ordered)
		received += int64(item.Received)
		switch item.Status {
		case StatusComplete:
			s.CompleteItems++
		case StatusPartial:
			s.PartialItems++
		case StatusOverDelivered:
			s.OverDeliveredItems++
		default:
			s.PendingItems++
		}
	}
	s.PercentReceived = percent(received, ordered)
	return s
}

// percent rounds half away from zero.
func percent(part, whole int64) int {
	if whole <= 0 {
		return 0
	}
	return int(decimal.NewFromInt(part).Mul(hundred).Div(decimal.NewFromInt(whole)).Round(0).IntPart())
}

// Totals folds the receipts of one request into ledger totals.
func Totals(requestID int64, receipts []Receipt) ReceiptTotals {
	out := ReceiptTotals{RequestID: requestID, TotalReceipts: len(receipts)}
	suppliers := make(map[int64]struct{})
	for i := range receipts {
		r := receipts[i]
		out.TotalQuantity += r.QuantityReceived
		out.TotalRejected += r.RejectedQuantity
		if r.SupplierID != nil {
			suppliers[*r.SupplierID] = struct{}{}
		}
		at := r.CreatedAt
		if out.FirstReceiptAt == nil || at.Before(*out.FirstReceiptAt) {
			out.FirstReceiptAt = &at
		}
		if out.LastReceiptAt == nil || at.After(*out.LastReceiptAt) {
			out.LastReceiptAt = &at
		}
	}
	out.UniqueSuppliers = len(suppliers)
	return out
}
