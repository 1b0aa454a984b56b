package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/sistemas-pedidos/pedidos-api/internal/jobs"
)

// KeyCleaner removes idempotency keys older than a retention window.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupHandler purges expired submission keys.
type IdempotencyCleanupHandler struct {
	store     KeyCleaner
	retention time.Duration
	metrics   *jobmetrics.Metrics
	logger    *slog.Logger
}

// NewIdempotencyCleanupHandler constructs the handler. retention is used when
// the task payload carries none.
func NewIdempotencyCleanupHandler(store KeyCleaner, retention time.Duration, metrics *jobmetrics.Metrics, logger *slog.Logger) *IdempotencyCleanupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanupHandler{store: store, retention: retention, metrics: metrics, logger: logger}
}

// ProcessTask implements asynq.Handler.
func (h *IdempotencyCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	tracker := h.metrics.Track(TaskIdempotencyCleanup)
	retention := h.retention
	var payload IdempotencyCleanupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return tracker.End(asynq.SkipRetry)
		}
		if payload.RetentionHours > 0 {
			retention = time.Duration(payload.RetentionHours) * time.Hour
		}
	}
	if retention <= 0 {
		retention = 72 * time.Hour
	}
	removed, err := h.store.Cleanup(ctx, retention)
	if err != nil {
		return tracker.End(err)
	}
	h.logger.Info("idempotency keys purged", slog.Int64("removed", removed), slog.Duration("retention", retention))
	return tracker.End(nil)
}
