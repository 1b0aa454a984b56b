package receiving

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sistemas-pedidos/pedidos-api/internal/platform/db"
	"github.com/sistemas-pedidos/pedidos-api/internal/requests"
	"github.com/sistemas-pedidos/pedidos-api/internal/shared"
)

// IdempotencyModule scopes receipt submission keys in the idempotency store.
const IdempotencyModule = "receiving.receipt"

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListReceipts(ctx context.Context, itemID int64) ([]Receipt, error)
	ListReceiptsByRequest(ctx context.Context, requestID int64) ([]Receipt, error)
	ListExportRows(ctx context.Context, filter ExportFilter) ([]ExportRow, error)
}

// LifecyclePort exposes the request and item state owned by the request lifecycle.
type LifecyclePort interface {
	Request(ctx context.Context, id int64) (requests.PurchaseRequest, error)
	Item(ctx context.Context, id int64) (requests.Item, error)
	Items(ctx context.Context, requestID int64) ([]requests.Item, error)
}

// AuditPort reused from shared.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort claims and releases submission keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// MetricsPort records receipt outcomes.
type MetricsPort interface {
	RecordReceipt(result string)
	RecordOverDelivery()
}

// Service is the only write path into the receipt ledger.
type Service struct {
	repo        RepositoryPort
	lifecycle   LifecyclePort
	audit       AuditPort
	idempotency IdempotencyPort
	events      EventHandler
	metrics     MetricsPort
	validator   *Validator
	logger      *slog.Logger
}

// NewService constructs the receiving service.
func NewService(repo RepositoryPort, lifecycle LifecyclePort, audit AuditPort, idem IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		lifecycle:   lifecycle,
		audit:       audit,
		idempotency: idem,
		validator:   NewValidator(),
		logger:      logger,
	}
}

// SetEventHandler registers the receiver of post-commit events.
func (s *Service) SetEventHandler(handler EventHandler) {
	s.events = handler
}

// SetMetrics registers the receipt metrics recorder.
func (s *Service) SetMetrics(metrics MetricsPort) {
	s.metrics = metrics
}

// RecordResult is the outcome of a successful RecordReceipt.
type RecordResult struct {
	Receipt     Receipt
	Fulfillment *ItemFulfillment
	Warning     string
}

// RecordReceipt validates, authorizes and appends one receipt. Over-delivery
// is accepted and reported through Warning.
func (s *Service) RecordReceipt(ctx context.Context, actor shared.Actor, requestID, itemID int64, input ReceiptInput, idempotencyKey string) (RecordResult, error) {
	receipt, err := s.validator.Validate(input)
	if err != nil {
		s.observe("invalid")
		return RecordResult{}, err
	}
	item, req, err := s.loadItem(ctx, requestID, itemID)
	if err != nil {
		return RecordResult{}, err
	}
	if err := CanRecordReceipt(req.Status, actor.Role).Err(); err != nil {
		s.observe("denied")
		return RecordResult{}, err
	}
	if err := CanReceiveItem(item.Status).Err(); err != nil {
		s.observe("denied")
		return RecordResult{}, err
	}

	key := ""
	if idempotencyKey != "" && s.idempotency != nil {
		key = scopedKey(actor.ID, itemID, idempotencyKey)
		if err := s.idempotency.CheckAndInsert(ctx, key, IdempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				s.observe("duplicate")
				return RecordResult{}, ErrDuplicateSubmission
			}
			return RecordResult{}, err
		}
	}

	receipt.ItemID = itemID
	receipt.ReceivedBy = actor.ID
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, err := tx.InsertReceipt(ctx, receipt)
		if err != nil {
			return err
		}
		receipt = created
		return nil
	})
	if err != nil {
		if key != "" {
			if derr := s.idempotency.Delete(ctx, key); derr != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		err = insertError(err)
		var verr *ValidationError
		if errors.As(err, &verr) {
			s.observe("invalid")
		} else {
			s.observe("error")
		}
		return RecordResult{}, err
	}

	result := RecordResult{Receipt: receipt}
	receipts, err := s.repo.ListReceipts(ctx, itemID)
	if err != nil {
		s.logger.Warn("recompute fulfillment after receipt", slog.Int64("item_id", itemID), slog.Any("error", err))
	} else {
		f := Calculate(itemID, item.Quantity, receipts)
		f.ProductName = item.ProductName
		result.Fulfillment = &f
		if f.Status == StatusOverDelivered {
			result.Warning = fmt.Sprintf("item over-delivered: %d received against %d ordered", f.Received, f.Ordered)
			if s.metrics != nil {
				s.metrics.RecordOverDelivery()
			}
		}
	}
	s.observe("recorded")
	s.recordAudit(ctx, actor, "RECEIPT_CREATE", receipt.ID, map[string]any{
		"request_id":        requestID,
		"item_id":           itemID,
		"quantity_received": receipt.QuantityReceived,
		"rejected_quantity": receipt.RejectedQuantity,
		"invoice_number":    receipt.InvoiceNumber,
	})
	s.publish(ctx, requestID, receipt, result.Fulfillment)
	return result, nil
}

// ListReceipts returns an item's receipts oldest first.
func (s *Service) ListReceipts(ctx context.Context, actor shared.Actor, requestID, itemID int64) ([]Receipt, error) {
	_, req, err := s.loadItem(ctx, requestID, itemID)
	if err != nil {
		return nil, err
	}
	if err := CanViewRequest(actor, req.RequesterID).Err(); err != nil {
		return nil, err
	}
	return s.repo.ListReceipts(ctx, itemID)
}

// ItemFulfillment recomputes one item's fulfillment from the ledger.
func (s *Service) ItemFulfillment(ctx context.Context, actor shared.Actor, requestID, itemID int64) (ItemFulfillment, error) {
	item, req, err := s.loadItem(ctx, requestID, itemID)
	if err != nil {
		return ItemFulfillment{}, err
	}
	if err := CanViewRequest(actor, req.RequesterID).Err(); err != nil {
		return ItemFulfillment{}, err
	}
	receipts, err := s.repo.ListReceipts(ctx, itemID)
	if err != nil {
		return ItemFulfillment{}, err
	}
	f := Calculate(itemID, item.Quantity, receipts)
	f.ProductName = item.ProductName
	return f, nil
}

// RequestFulfillment summarizes the approved items of a request.
func (s *Service) RequestFulfillment(ctx context.Context, actor shared.Actor, requestID int64) (RequestFulfillment, error) {
	var (
		req      requests.PurchaseRequest
		items    []requests.Item
		receipts []Receipt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		req, err = s.lifecycle.Request(gctx, requestID)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = s.lifecycle.Items(gctx, requestID)
		return err
	})
	g.Go(func() error {
		var err error
		receipts, err = s.repo.ListReceiptsByRequest(gctx, requestID)
		return err
	})
	if err := g.Wait(); err != nil {
		return RequestFulfillment{}, s.translate(err, "request", requestID)
	}
	if err := CanViewRequest(actor, req.RequesterID).Err(); err != nil {
		return RequestFulfillment{}, err
	}
	return BuildRequestFulfillment(requestID, items, receipts), nil
}

// BuildRequestFulfillment folds each approved item's receipts and summarizes them.
func BuildRequestFulfillment(requestID int64, items []requests.Item, receipts []Receipt) RequestFulfillment {
	byItem := make(map[int64][]Receipt, len(items))
	for _, r := range receipts {
		byItem[r.ItemID] = append(byItem[r.ItemID], r)
	}
	rows := make([]ItemFulfillment, 0, len(items))
	for _, item := range items {
		if item.Status != requests.ItemApproved {
			continue
		}
		f := Calculate(item.ID, item.Quantity, byItem[item.ID])
		f.ProductName = item.ProductName
		rows = append(rows, f)
	}
	return RequestFulfillment{RequestID: requestID, Summary: Summarize(rows), Items: rows}
}

// ReceiptTotals folds every receipt of a request into ledger totals.
func (s *Service) ReceiptTotals(ctx context.Context, actor shared.Actor, requestID int64) (ReceiptTotals, error) {
	req, err := s.lifecycle.Request(ctx, requestID)
	if err != nil {
		return ReceiptTotals{}, s.translate(err, "request", requestID)
	}
	if err := CanViewRequest(actor, req.RequesterID).Err(); err != nil {
		return ReceiptTotals{}, err
	}
	receipts, err := s.repo.ListReceiptsByRequest(ctx, requestID)
	if err != nil {
		return ReceiptTotals{}, err
	}
	return Totals(requestID, receipts), nil
}

// Export writes the filtered receipt ledger as CSV. Admin only.
func (s *Service) Export(ctx context.Context, actor shared.Actor, filter ExportFilter, w io.Writer) error {
	if !actor.IsAdmin() {
		return &AuthorizationError{Condition: ConditionRole, Reason: "only administrators can export receipts"}
	}
	rows, err := s.repo.ListExportRows(ctx, filter)
	if err != nil {
		return err
	}
	return WriteCSV(w, rows)
}

func (s *Service) loadItem(ctx context.Context, requestID, itemID int64) (requests.Item, requests.PurchaseRequest, error) {
	item, err := s.lifecycle.Item(ctx, itemID)
	if err != nil {
		return requests.Item{}, requests.PurchaseRequest{}, s.translate(err, "item", itemID)
	}
	if item.RequestID != requestID {
		return requests.Item{}, requests.PurchaseRequest{}, &NotFoundError{Entity: "item", ID: itemID}
	}
	req, err := s.lifecycle.Request(ctx, requestID)
	if err != nil {
		return requests.Item{}, requests.PurchaseRequest{}, s.translate(err, "request", requestID)
	}
	return item, req, nil
}

// insertError maps a rejected supplier reference to an input error.
func insertError(err error) error {
	constraint, ok := db.ForeignKeyConstraint(err)
	if !ok {
		return err
	}
	if constraint == "" || strings.Contains(constraint, "supplier") {
		return &ValidationError{Field: "supplierId", Message: "does not reference a known supplier"}
	}
	return err
}

func (s *Service) translate(err error, entity string, id int64) error {
	if errors.Is(err, requests.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return err
}

func (s *Service) publish(ctx context.Context, requestID int64, receipt Receipt, f *ItemFulfillment) {
	if s.events == nil {
		return
	}
	evt := ReceiptRecordedEvent{
		EventID:          uuid.NewString(),
		ReceiptID:        receipt.ID,
		RequestID:        requestID,
		ItemID:           receipt.ItemID,
		QuantityReceived: receipt.QuantityReceived,
		RejectedQuantity: receipt.RejectedQuantity,
		ReceivedBy:       receipt.ReceivedBy,
		RecordedAt:       receipt.CreatedAt,
	}
	if f != nil {
		evt.Status = f.Status
		evt.Pending = f.Pending
	}
	if err := s.events.HandleReceiptRecorded(ctx, evt); err != nil {
		s.logger.Warn("publish receipt event", slog.Int64("receipt_id", receipt.ID), slog.Any("error", err))
	}
}

func (s *Service) observe(result string) {
	if s.metrics != nil {
		s.metrics.RecordReceipt(result)
	}
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	log := shared.AuditLog{ActorID: actor.ID, Action: action, Entity: "receiving", EntityID: fmt.Sprintf("%d", entityID), Meta: meta, At: time.Now()}
	if err := s.audit.Record(ctx, log); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}

// scopedKey binds a client key to the actor and item so that keys cannot
// collide across items.
func scopedKey(actorID, itemID int64, key string) string {
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("receipt:%d:%d:%s", actorID, itemID, key))).String()
}
