package receiving

import (
	"context"
	"time"
)

// ReceiptRecordedEvent is emitted after a receipt has been committed.
type ReceiptRecordedEvent struct {
	EventID          string    `json:"eventId"`
	ReceiptID        int64     `json:"receiptId"`
	RequestID        int64     `json:"requestId"`
	ItemID           int64     `json:"itemId"`
	QuantityReceived int       `json:"quantityReceived"`
	RejectedQuantity int       `json:"rejectedQuantity"`
	Status           Status    `json:"status"`
	Pending          int       `json:"pending"`
	ReceivedBy       int64     `json:"receivedBy"`
	RecordedAt       time.Time `json:"recordedAt"`
}

// EventHandler receives receiving domain events for integration.
type EventHandler interface {
	HandleReceiptRecorded(ctx context.Context, evt ReceiptRecordedEvent) error
}
