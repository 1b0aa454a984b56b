package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sistemas-pedidos/pedidos-api/internal/jobs"
	"github.com/sistemas-pedidos/pedidos-api/internal/receiving"
	"github.com/sistemas-pedidos/pedidos-api/internal/requests"
)

// ItemSource resolves the item a receipt was recorded against.
type ItemSource interface {
	GetItem(ctx context.Context, id int64) (requests.Item, error)
}

// ReceiptSource lists the ledger of an item.
type ReceiptSource interface {
	ListReceipts(ctx context.Context, itemID int64) ([]receiving.Receipt, error)
}

// ReceiptRecordedHandler recomputes fulfillment for items that just received goods.
type ReceiptRecordedHandler struct {
	items    ItemSource
	receipts ReceiptSource
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
}

// NewReceiptRecordedHandler constructs the handler.
func NewReceiptRecordedHandler(items ItemSource, receipts ReceiptSource, metrics *jobmetrics.Metrics, logger *slog.Logger) *ReceiptRecordedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptRecordedHandler{items: items, receipts: receipts, metrics: metrics, logger: logger}
}

// ProcessTask implements asynq.Handler.
func (h *ReceiptRecordedHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track(TaskReceiptRecorded)
	var evt receiving.ReceiptRecordedEvent
	if err := json.Unmarshal(t.Payload(), &evt); err != nil || evt.ItemID == 0 {
		return tracker.End(fmt.Errorf("decode receipt event: %w", asynq.SkipRetry))
	}
	f, err := h.Recompute(ctx, evt.ItemID)
	if err != nil {
		if errors.Is(err, requests.ErrNotFound) {
			return tracker.End(fmt.Errorf("item %d: %w", evt.ItemID, asynq.SkipRetry))
		}
		return tracker.End(err)
	}
	h.metrics.ObserveFulfillment(string(f.Status))
	if f.Status == receiving.StatusOverDelivered {
		h.logger.Warn("item over-delivered",
			slog.Int64("request_id", evt.RequestID),
			slog.Int64("item_id", f.ItemID),
			slog.Int("ordered", f.Ordered),
			slog.Int("received", f.Received),
		)
	}
	return tracker.End(nil)
}

// Recompute folds the current ledger of an item.
func (h *ReceiptRecordedHandler) Recompute(ctx context.Context, itemID int64) (receiving.ItemFulfillment, error) {
	item, err := h.items.GetItem(ctx, itemID)
	if err != nil {
		return receiving.ItemFulfillment{}, err
	}
	receipts, err := h.receipts.ListReceipts(ctx, itemID)
	if err != nil {
		return receiving.ItemFulfillment{}, err
	}
	f := receiving.Calculate(item.ID, item.Quantity, receipts)
	f.ProductName = item.ProductName
	return f, nil
}
