package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/sistemas-pedidos/pedidos-api/internal/jobs"
	"github.com/sistemas-pedidos/pedidos-api/internal/receiving"
	"github.com/sistemas-pedidos/pedidos-api/internal/requests"
)

type stubItems map[int64]requests.Item

func (s stubItems) GetItem(_ context.Context, id int64) (requests.Item, error) {
	item, ok := s[id]
	if !ok {
		return requests.Item{}, requests.ErrNotFound
	}
	return item, nil
}

type stubReceipts struct {
	byItem map[int64][]receiving.Receipt
	err    error
}

func (s stubReceipts) ListReceipts(_ context.Context, itemID int64) ([]receiving.Receipt, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.byItem[itemID], nil
}

func receiptTask(t *testing.T, evt receiving.ReceiptRecordedEvent) *asynq.Task {
	t.Helper()
	task, err := NewReceiptRecordedTask(evt)
	require.NoError(t, err)
	return task
}

func TestReceiptRecordedRecomputesFulfillment(t *testing.T) {
	items := stubItems{7: {ID: 7, RequestID: 1, ProductName: "Paper", Quantity: 10}}
	receipts := stubReceipts{byItem: map[int64][]receiving.Receipt{
		7: {
			{ID: 1, ItemID: 7, QuantityReceived: 6},
			{ID: 2, ItemID: 7, QuantityReceived: 6, RejectedQuantity: 1},
		},
	}}
	h := NewReceiptRecordedHandler(items, receipts, jobmetrics.NewMetrics(prometheus.NewRegistry()), nil)

	f, err := h.Recompute(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 11, f.Received)
	require.Equal(t, receiving.StatusOverDelivered, f.Status)
	require.Equal(t, "Paper", f.ProductName)

	err = h.ProcessTask(context.Background(), receiptTask(t, receiving.ReceiptRecordedEvent{RequestID: 1, ItemID: 7}))
	require.NoError(t, err)
}

func TestReceiptRecordedSkipsRetryForUnknownItem(t *testing.T) {
	h := NewReceiptRecordedHandler(stubItems{}, stubReceipts{}, nil, nil)
	err := h.ProcessTask(context.Background(), receiptTask(t, receiving.ReceiptRecordedEvent{RequestID: 1, ItemID: 99}))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = h.ProcessTask(context.Background(), asynq.NewTask(TaskReceiptRecorded, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestReceiptRecordedRetriesStoreFailure(t *testing.T) {
	boom := errors.New("db down")
	items := stubItems{7: {ID: 7, Quantity: 1}}
	h := NewReceiptRecordedHandler(items, stubReceipts{err: boom}, nil, nil)
	err := h.ProcessTask(context.Background(), receiptTask(t, receiving.ReceiptRecordedEvent{ItemID: 7}))
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

type stubCleaner struct {
	olderThan time.Duration
	removed   int64
}

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.olderThan = olderThan
	return s.removed, nil
}

func TestIdempotencyCleanupRetention(t *testing.T) {
	cleaner := &stubCleaner{removed: 3}
	h := NewIdempotencyCleanupHandler(cleaner, 48*time.Hour, nil, nil)

	require.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, nil)))
	require.Equal(t, 48*time.Hour, cleaner.olderThan)

	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: 6})
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, body)))
	require.Equal(t, 6*time.Hour, cleaner.olderThan)
}
