package requests

import (
	"fmt"
	"time"

	"github.com/sistemas-pedidos/pedidos-api/internal/platform/httpx"
)

// Status is the purchase request lifecycle status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusPartial   Status = "partial"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// Statuses lists every request status in lifecycle order.
var Statuses = []Status{StatusPending, StatusApproved, StatusPartial, StatusRejected, StatusCompleted}

// ItemStatus is the review status of a requested item.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemApproved  ItemStatus = "approved"
	ItemRejected  ItemStatus = "rejected"
	ItemSuspended ItemStatus = "suspended"
)

// PurchaseRequest domain model.
type PurchaseRequest struct {
	ID              int64
	RequesterID     int64
	Status          Status
	Observations    string
	AdminNotes      string
	CompletionNotes string
	CompletedBy     *int64
	CompletedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Item is one requested line.
type Item struct {
	ID               int64
	RequestID        int64
	ProductID        int64
	ProductName      string
	Quantity         int
	Status           ItemStatus
	Deadline         *time.Time
	AdminNotes       string
	SuspensionReason string
	CreatedAt        time.Time
}

var (
	ErrNotFound        = fmt.Errorf("requests: %w", httpx.ErrNotFound)
	ErrForbidden       = fmt.Errorf("requests: %w", httpx.ErrForbidden)
	ErrInvalidState    = fmt.Errorf("requests: invalid state: %w", httpx.ErrConflict)
	ErrValidation      = fmt.Errorf("requests: %w", httpx.ErrValidation)
	ErrQuantityLocked  = fmt.Errorf("requests: quantity is locked once the item is reviewed: %w", httpx.ErrConflict)
	ErrItemHasReceipts = fmt.Errorf("requests: item already has receipts: %w", httpx.ErrConflict)
)

// FieldError is a validation failure tied to one input field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("requests: %s %s", e.Field, e.Message)
}

// FieldName returns the offending field.
func (e *FieldError) FieldName() string { return e.Field }

func (e *FieldError) Unwrap() error { return ErrValidation }

// RecomputeStatus derives the request status from its items' review status.
// Any pending item keeps the request pending; otherwise all approved yields
// approved, all rejected yields rejected and any mix yields partial.
func RecomputeStatus(items []Item) Status {
	if len(items) == 0 {
		return StatusPending
	}
	var approved, rejected int
	for _, item := range items {
		switch item.Status {
		case ItemPending:
			return StatusPending
		case ItemApproved:
			approved++
		case ItemRejected:
			rejected++
		}
	}
	switch {
	case approved == len(items):
		return StatusApproved
	case rejected == len(items):
		return StatusRejected
	default:
		return StatusPartial
	}
}
