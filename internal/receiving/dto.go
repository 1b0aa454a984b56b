package receiving

import "time"

type receiptResponse struct {
	ID               int64      `json:"id"`
	ItemID           int64      `json:"itemId"`
	QuantityReceived int        `json:"quantityReceived"`
	RejectedQuantity int        `json:"rejectedQuantity"`
	NetQuantity      int        `json:"netQuantity"`
	InvoiceNumber    string     `json:"invoiceNumber"`
	InvoiceDate      *time.Time `json:"invoiceDate"`
	LotNumber        string     `json:"lotNumber,omitempty"`
	ExpirationDate   *time.Time `json:"expirationDate"`
	SupplierID       *int64     `json:"supplierId"`
	Notes            string     `json:"notes,omitempty"`
	ReceiptCondition Condition  `json:"receiptCondition"`
	QualityChecked   bool       `json:"qualityChecked"`
	QualityNotes     string     `json:"qualityNotes,omitempty"`
	ReceivedBy       int64      `json:"receivedBy"`
	CreatedAt        time.Time  `json:"createdAt"`
}

type fulfillmentResponse struct {
	ItemID           int64      `json:"itemId"`
	ProductName      string     `json:"productName"`
	QuantityOrdered  int        `json:"quantityOrdered"`
	QuantityReceived int        `json:"quantityReceived"`
	QuantityPending  int        `json:"quantityPending"`
	Status           Status     `json:"status"`
	LastReceivedAt   *time.Time `json:"lastReceivedAt,omitempty"`
}

type summaryResponse struct {
	TotalItems         int `json:"totalItems"`
	CompleteItems      int `json:"completeItems"`
	PartialItems       int `json:"partialItems"`
	PendingItems       int `json:"pendingItems"`
	OverDeliveredItems int `json:"overDeliveredItems"`
	PercentReceived    int `json:"percentReceived"`
}

type statusResponse struct {
	Summary summaryResponse       `json:"summary"`
	Items   []fulfillmentResponse `json:"items"`
}

type recordResponse struct {
	Receipt     receiptResponse      `json:"receipt"`
	Fulfillment *fulfillmentResponse `json:"fulfillment,omitempty"`
	Warning     string               `json:"warning,omitempty"`
}

type totalsResponse struct {
	RequestID       int64      `json:"requestId"`
	TotalReceipts   int        `json:"totalReceipts"`
	TotalQuantity   int        `json:"totalQuantity"`
	TotalRejected   int        `json:"totalRejected"`
	UniqueSuppliers int        `json:"uniqueSuppliers"`
	FirstReceiptAt  *time.Time `json:"firstReceiptAt,omitempty"`
	LastReceiptAt   *time.Time `json:"lastReceiptAt,omitempty"`
}

func toReceiptResponse(r Receipt) receiptResponse {
	return receiptResponse{
		ID:               r.ID,
		ItemID:           r.ItemID,
		QuantityReceived: r.QuantityReceived,
		RejectedQuantity: r.RejectedQuantity,
		NetQuantity:      r.NetQuantity(),
		InvoiceNumber:    r.InvoiceNumber,
		InvoiceDate:      r.InvoiceDate,
		LotNumber:        r.LotNumber,
		ExpirationDate:   r.ExpirationDate,
		SupplierID:       r.SupplierID,
		Notes:            r.Notes,
		ReceiptCondition: r.Condition,
		QualityChecked:   r.QualityChecked,
		QualityNotes:     r.QualityNotes,
		ReceivedBy:       r.ReceivedBy,
		CreatedAt:        r.CreatedAt,
	}
}

func toFulfillmentResponse(f ItemFulfillment) fulfillmentResponse {
	return fulfillmentResponse{
		ItemID:           f.ItemID,
		ProductName:      f.ProductName,
		QuantityOrdered:  f.Ordered,
		QuantityReceived: f.Received,
		QuantityPending:  f.Pending,
		Status:           f.Status,
		LastReceivedAt:   f.LastReceivedAt,
	}
}

func toStatusResponse(rf RequestFulfillment) statusResponse {
	items := make([]fulfillmentResponse, 0, len(rf.Items))
	for _, f := range rf.Items {
		items = append(items, toFulfillmentResponse(f))
	}
	s := rf.Summary
	return statusResponse{
		Summary: summaryResponse{
			TotalItems:         s.TotalItems,
			CompleteItems:      s.CompleteItems,
			PartialItems:       s.PartialItems,
			PendingItems:       s.PendingItems,
			OverDeliveredItems: s.OverDeliveredItems,
			PercentReceived:    s.PercentReceived,
		},
		Items: items,
	}
}

func toTotalsResponse(t ReceiptTotals) totalsResponse {
	return totalsResponse{
		RequestID:       t.RequestID,
		TotalReceipts:   t.TotalReceipts,
		TotalQuantity:   t.TotalQuantity,
		TotalRejected:   t.TotalRejected,
		UniqueSuppliers: t.UniqueSuppliers,
		FirstReceiptAt:  t.FirstReceiptAt,
		LastReceiptAt:   t.LastReceiptAt,
	}
}
