package receiving

import (
	"fmt"
	"time"

	"github.com/sistemas-pedidos/pedidos-api/internal/platform/httpx"
)

// Condition describes the physical state of delivered goods.
type Condition string

const (
	ConditionGood          Condition = "good"
	ConditionDamaged       Condition = "damaged"
	ConditionPartialDamage Condition = "partial_damage"
)

// Status is the derived fulfillment status of an item.
type Status string

const (
	StatusPending       Status = "pending"
	StatusPartial       Status = "partial"
	StatusComplete      Status = "complete"
	StatusOverDelivered Status = "over_delivered"
)

// Receipt is one immutable delivery event recorded against an item.
type Receipt struct {
	ID               int64
	ItemID           int64
	QuantityReceived int
	RejectedQuantity int
	InvoiceNumber    string
	InvoiceDate      *time.Time
	LotNumber        string
	ExpirationDate   *time.Time
	SupplierID       *int64
	Notes            string
	Condition        Condition
	QualityChecked   bool
	QualityNotes     string
	ReceivedBy       int64
	CreatedAt        time.Time
}

// NetQuantity is the accepted quantity of the receipt.
func (r Receipt) NetQuantity() int {
	return r.QuantityReceived - r.RejectedQuantity
}

// ItemFulfillment is the fulfillment view of one item, derived from its receipts.
type ItemFulfillment struct {
	ItemID         int64
	ProductName    string
	Ordered        int
	Received       int
	Pending        int
	Status         Status
	LastReceivedAt *time.Time
}

// Summary rolls item fulfillment up to the request.
type Summary struct {
	TotalItems         int
	CompleteItems      int
	PartialItems       int
	PendingItems       int
	OverDeliveredItems int
	PercentReceived    int
}

// RequestFulfillment pairs the summary with the item rows it was built from.
type RequestFulfillment struct {
	RequestID int64
	Summary   Summary
	Items     []ItemFulfillment
}

// ReceiptTotals aggregates the raw ledger of one request.
type ReceiptTotals struct {
	RequestID       int64
	TotalReceipts   int
	TotalQuantity   int
	TotalRejected   int
	UniqueSuppliers int
	FirstReceiptAt  *time.Time
	LastReceiptAt   *time.Time
}

// ErrDuplicateSubmission is returned when an Idempotency-Key was already used.
var ErrDuplicateSubmission = fmt.Errorf("receiving: receipt already submitted: %w", httpx.ErrDuplicate)

// ValidationError names the payload field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldName returns the offending field.
func (e *ValidationError) FieldName() string { return e.Field }

func (e *ValidationError) Unwrap() error { return httpx.ErrValidation }

// Authorization conditions reported by AuthorizationError.
const (
	ConditionRole   = "role"
	ConditionStatus = "status"
	ConditionItem   = "item"
)

// AuthorizationError reports which condition blocked an operation.
type AuthorizationError struct {
	Condition string
	Reason    string
}

func (e *AuthorizationError) Error() string { return e.Reason }

// FailedCondition returns role, status or item.
func (e *AuthorizationError) FailedCondition() string { return e.Condition }

func (e *AuthorizationError) Unwrap() error { return httpx.ErrForbidden }

// NotFoundError reports a missing request or item.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return httpx.ErrNotFound }
