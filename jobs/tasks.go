package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/sistemas-pedidos/pedidos-api/internal/receiving"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReceiptRecorded re-checks item fulfillment after a receipt was recorded.
	TaskReceiptRecorded = "receiving:recorded"
	// TaskIdempotencyCleanup purges expired submission keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// NewReceiptRecordedTask constructs an Asynq task carrying the event.
func NewReceiptRecordedTask(evt receiving.ReceiptRecordedEvent) (*asynq.Task, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReceiptRecorded, data, asynq.Queue(QueueDefault), asynq.MaxRetry(5)), nil
}

// IdempotencyCleanupPayload is the cron payload for key cleanup.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours"`
}

// NewIdempotencyCleanupTask builds the cleanup task.
func NewIdempotencyCleanupTask(retentionHours int) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{RetentionHours: retentionHours})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
