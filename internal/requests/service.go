package requests

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sistemas-pedidos/pedidos-api/internal/platform/db"
	"github.com/sistemas-pedidos/pedidos-api/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetRequest(ctx context.Context, id int64) (PurchaseRequest, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context, requestID int64) ([]Item, error)
}

// ReceiptCounter reports how many receipts were recorded against an item.
type ReceiptCounter interface {
	CountReceipts(ctx context.Context, itemID int64) (int, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns the purchase request lifecycle.
type Service struct {
	repo     RepositoryPort
	receipts ReceiptCounter
	audit    AuditPort
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the lifecycle service.
func NewService(repo RepositoryPort, receipts ReceiptCounter, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		receipts: receipts,
		audit:    audit,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// ItemInput describes one requested line.
type ItemInput struct {
	ProductID int64      `json:"productId" validate:"required,gt=0"`
	Quantity  int        `json:"quantity" validate:"required,gt=0"`
	Deadline  *time.Time `json:"deadline"`
}

// CreateInput describes a new purchase request.
type CreateInput struct {
	Observations string      `json:"observations" validate:"max=2000"`
	Items        []ItemInput `json:"items" validate:"required,min=1,dive"`
}

// ReviewInput carries an admin review decision for one item.
type ReviewInput struct {
	Status           ItemStatus `json:"status" validate:"required,oneof=approved rejected suspended"`
	AdminNotes       string     `json:"adminNotes"`
	SuspensionReason string     `json:"suspensionReason"`
}

// UpdateItemInput carries partial item changes.
type UpdateItemInput struct {
	ProductID *int64     `json:"productId" validate:"omitempty,gt=0"`
	Quantity  *int       `json:"quantity" validate:"omitempty,gt=0"`
	Deadline  *time.Time `json:"deadline"`
}

// Create persists a request and its items in pending status.
func (s *Service) Create(ctx context.Context, actor shared.Actor, input CreateInput) (PurchaseRequest, []Item, error) {
	if err := s.validate.Struct(input); err != nil {
		return PurchaseRequest{}, nil, fmt.Errorf("%w: %s", ErrValidation, firstViolation(err))
	}
	var (
		created PurchaseRequest
		items   []Item
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.CreateRequest(ctx, PurchaseRequest{
			RequesterID:  actor.ID,
			Status:       StatusPending,
			Observations: strings.TrimSpace(input.Observations),
		})
		if err != nil {
			return err
		}
		for _, line := range input.Items {
			item, err := tx.InsertItem(ctx, Item{
				RequestID: pr.ID,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Status:    ItemPending,
				Deadline:  line.Deadline,
			})
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		created = pr
		return nil
	})
	if err != nil {
		return PurchaseRequest{}, nil, productError(err)
	}
	s.recordAudit(ctx, actor, "REQUEST_CREATE", created.ID, map[string]any{"items": len(items)})
	return created, items, nil
}

// View returns a request with its items for its requester or an admin.
func (s *Service) View(ctx context.Context, actor shared.Actor, id int64) (PurchaseRequest, []Item, error) {
	pr, err := s.repo.GetRequest(ctx, id)
	if err != nil {
		return PurchaseRequest{}, nil, err
	}
	if !actor.IsAdmin() && pr.RequesterID != actor.ID {
		return PurchaseRequest{}, nil, ErrForbidden
	}
	items, err := s.repo.ListItems(ctx, id)
	if err != nil {
		return PurchaseRequest{}, nil, err
	}
	return pr, items, nil
}

// Request returns the request without access checks. Callers authorize.
func (s *Service) Request(ctx context.Context, id int64) (PurchaseRequest, error) {
	return s.repo.GetRequest(ctx, id)
}

// Item returns an item without access checks.
func (s *Service) Item(ctx context.Context, id int64) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// Items returns the items of a request without access checks.
func (s *Service) Items(ctx context.Context, requestID int64) ([]Item, error) {
	return s.repo.ListItems(ctx, requestID)
}

// AddItem appends an item to a pending request.
func (s *Service) AddItem(ctx context.Context, actor shared.Actor, requestID int64, input ItemInput) (Item, error) {
	if err := s.validate.Struct(input); err != nil {
		return Item{}, fmt.Errorf("%w: %s", ErrValidation, firstViolation(err))
	}
	var created Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		pr, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && pr.RequesterID != actor.ID {
			return ErrForbidden
		}
		if pr.Status != StatusPending {
			return ErrInvalidState
		}
		created, err = tx.InsertItem(ctx, Item{
			RequestID: requestID,
			ProductID: input.ProductID,
			Quantity:  input.Quantity,
			Status:    ItemPending,
			Deadline:  input.Deadline,
		})
		return err
	})
	if err != nil {
		return Item{}, productError(err)
	}
	s.recordAudit(ctx, actor, "ITEM_CREATE", created.ID, map[string]any{"request_id": requestID})
	return created, nil
}

// ReviewItem applies an admin decision to an item and recomputes the request status.
func (s *Service) ReviewItem(ctx context.Context, actor shared.Actor, requestID, itemID int64, input ReviewInput) (Item, PurchaseRequest, error) {
	if !actor.IsAdmin() {
		return Item{}, PurchaseRequest{}, ErrForbidden
	}
	if err := s.validate.Struct(input); err != nil {
		return Item{}, PurchaseRequest{}, fmt.Errorf("%w: %s", ErrValidation, firstViolation(err))
	}
	reason := strings.TrimSpace(input.SuspensionReason)
	if input.Status == ItemSuspended && reason == "" {
		return Item{}, PurchaseRequest{}, fmt.Errorf("%w: suspensionReason is required when suspending an item", ErrValidation)
	}
	var (
		reviewed Item
		pr       PurchaseRequest
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		pr, err = tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if pr.Status == StatusCompleted {
			return ErrInvalidState
		}
		items, err := tx.ListItems(ctx, requestID)
		if err != nil {
			return err
		}
		idx := indexOf(items, itemID)
		if idx < 0 {
			return ErrNotFound
		}
		items[idx].Status = input.Status
		items[idx].AdminNotes = strings.TrimSpace(input.AdminNotes)
		items[idx].SuspensionReason = ""
		if input.Status == ItemSuspended {
			items[idx].SuspensionReason = reason
		}
		if err := tx.UpdateItem(ctx, items[idx]); err != nil {
			return err
		}
		reviewed = items[idx]
		next := RecomputeStatus(items)
		if next != pr.Status {
			if err := tx.UpdateRequestStatus(ctx, requestID, next); err != nil {
				return err
			}
			pr.Status = next
		}
		return nil
	})
	if err != nil {
		return Item{}, PurchaseRequest{}, err
	}
	s.recordAudit(ctx, actor, "ITEM_REVIEW", itemID, map[string]any{"status": string(input.Status), "request_status": string(pr.Status)})
	return reviewed, pr, nil
}

// Complete closes an approved or partial request once no item awaits review.
func (s *Service) Complete(ctx context.Context, actor shared.Actor, requestID int64, notes string) (PurchaseRequest, error) {
	if !actor.IsAdmin() {
		return PurchaseRequest{}, ErrForbidden
	}
	var pr PurchaseRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		pr, err = tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if pr.Status != StatusApproved && pr.Status != StatusPartial {
			return ErrInvalidState
		}
		items, err := tx.ListItems(ctx, requestID)
		if err != nil {
			return err
		}
		if err := completable(items); err != nil {
			return err
		}
		at := s.now()
		notes = strings.TrimSpace(notes)
		if err := tx.CompleteRequest(ctx, requestID, actor.ID, at, notes); err != nil {
			return err
		}
		pr.Status = StatusCompleted
		pr.CompletedBy = &actor.ID
		pr.CompletedAt = &at
		pr.CompletionNotes = notes
		return nil
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	s.recordAudit(ctx, actor, "REQUEST_COMPLETE", requestID, nil)
	return pr, nil
}

// Reopen moves a completed request back to its recomputed review status.
func (s *Service) Reopen(ctx context.Context, actor shared.Actor, requestID int64) (PurchaseRequest, error) {
	if !actor.IsAdmin() {
		return PurchaseRequest{}, ErrForbidden
	}
	var pr PurchaseRequest
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		pr, err = tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if pr.Status != StatusCompleted {
			return ErrInvalidState
		}
		items, err := tx.ListItems(ctx, requestID)
		if err != nil {
			return err
		}
		next := RecomputeStatus(items)
		if next != StatusApproved && next != StatusPartial {
			next = StatusApproved
		}
		if err := tx.ReopenRequest(ctx, requestID, next); err != nil {
			return err
		}
		pr.Status = next
		pr.CompletedBy = nil
		pr.CompletedAt = nil
		return nil
	})
	if err != nil {
		return PurchaseRequest{}, err
	}
	s.recordAudit(ctx, actor, "REQUEST_REOPEN", requestID, map[string]any{"status": string(pr.Status)})
	return pr, nil
}

// UpdateItem changes product, quantity or deadline of an item.
func (s *Service) UpdateItem(ctx context.Context, actor shared.Actor, requestID, itemID int64, input UpdateItemInput) (Item, error) {
	if err := s.validate.Struct(input); err != nil {
		return Item{}, fmt.Errorf("%w: %s", ErrValidation, firstViolation(err))
	}
	var updated Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, pr, err := s.loadOwnedItem(ctx, tx, actor, requestID, itemID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && pr.Status != StatusPending {
			return ErrInvalidState
		}
		quantityChange := input.Quantity != nil && *input.Quantity != item.Quantity
		productChange := input.ProductID != nil && *input.ProductID != item.ProductID
		if quantityChange || productChange {
			if item.Status != ItemPending {
				return ErrQuantityLocked
			}
			if err := s.ensureNoReceipts(ctx, itemID); err != nil {
				return err
			}
		}
		if input.Quantity != nil {
			item.Quantity = *input.Quantity
		}
		if input.ProductID != nil {
			item.ProductID = *input.ProductID
		}
		if input.Deadline != nil {
			item.Deadline = input.Deadline
		}
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return Item{}, productError(err)
	}
	s.recordAudit(ctx, actor, "ITEM_UPDATE", itemID, map[string]any{"request_id": requestID})
	return updated, nil
}

// DeleteItem removes an item that has no receipts.
func (s *Service) DeleteItem(ctx context.Context, actor shared.Actor, requestID, itemID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, pr, err := s.loadOwnedItem(ctx, tx, actor, requestID, itemID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && pr.Status != StatusPending {
			return ErrInvalidState
		}
		if err := s.ensureNoReceipts(ctx, itemID); err != nil {
			return err
		}
		if err := tx.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, requestID)
		if err != nil {
			return err
		}
		if pr.Status == StatusCompleted {
			return nil
		}
		if next := RecomputeStatus(items); next != pr.Status {
			return tx.UpdateRequestStatus(ctx, requestID, next)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "ITEM_DELETE", itemID, map[string]any{"request_id": requestID})
	return nil
}

// productError maps a rejected product reference to a field error.
func productError(err error) error {
	if db.IsForeignKeyViolation(err) {
		return &FieldError{Field: "productId", Message: "does not reference a known product"}
	}
	return err
}

func (s *Service) loadOwnedItem(ctx context.Context, tx TxRepository, actor shared.Actor, requestID, itemID int64) (Item, PurchaseRequest, error) {
	pr, err := tx.GetRequest(ctx, requestID)
	if err != nil {
		return Item{}, PurchaseRequest{}, err
	}
	if !actor.IsAdmin() && pr.RequesterID != actor.ID {
		return Item{}, PurchaseRequest{}, ErrForbidden
	}
	items, err := tx.ListItems(ctx, requestID)
	if err != nil {
		return Item{}, PurchaseRequest{}, err
	}
	idx := indexOf(items, itemID)
	if idx < 0 {
		return Item{}, PurchaseRequest{}, ErrNotFound
	}
	return items[idx], pr, nil
}

func (s *Service) ensureNoReceipts(ctx context.Context, itemID int64) error {
	if s.receipts == nil {
		return nil
	}
	count, err := s.receipts.CountReceipts(ctx, itemID)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrItemHasReceipts
	}
	return nil
}

func completable(items []Item) error {
	var closable int
	for _, item := range items {
		switch item.Status {
		case ItemPending:
			return fmt.Errorf("%w: items still pending review", ErrInvalidState)
		case ItemApproved, ItemSuspended:
			closable++
		}
	}
	if closable == 0 {
		return fmt.Errorf("%w: at least one approved or suspended item is required", ErrInvalidState)
	}
	return nil
}

func indexOf(items []Item, id int64) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func firstViolation(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
	}
	return err.Error()
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actor.ID, Action: action, Entity: "requests", EntityID: fmt.Sprintf("%d", entityID), Meta: meta}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
